package main

import "thoreinstein.com/quill/cmd"

func main() {
	cmd.Execute()
}
