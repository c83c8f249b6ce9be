package main

import "github.com/oshokin/deploy-manager/cmd/deploy-manager/cmd"

func main() {
	cmd.Execute()
}
