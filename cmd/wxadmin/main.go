package main

import "wxadmin/internal/cli"

func main() {
	cli.Execute()
}
