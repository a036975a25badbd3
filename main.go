package main

import "rtgraph/graphgen/cmd"

func main() {
	cmd.Execute()
}
