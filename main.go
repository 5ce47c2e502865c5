package main

import "github.com/datamunge/taxipipe/cmd"

func main() {
	cmd.Execute()
}
