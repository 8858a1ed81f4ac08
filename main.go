package main

import "loan-risk/cmd"

func main() {
	cmd.Execute()
}
