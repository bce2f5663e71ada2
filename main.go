package main

import "github.com/deploymenttheory/go-efidisk/cmd"

func main() {
	cmd.Execute()
}
