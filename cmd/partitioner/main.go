package main

import (
	"os"
	_ "time/tzdata"
)

func main() {
	os.Exit(Execute())
}
