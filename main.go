package main

import "github.com/gerrit-tools/serviceuser-cli/cli"

func main() {
	cli.Execute()
}
