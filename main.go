package main

import (
	"os"

	"github.com/irvingleonard/go-okta-client/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
