package main

import (
	"log"

	"github.com/ysy950803/userdbclean/cmd/userdbclean"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	userdbclean.Execute()
}
