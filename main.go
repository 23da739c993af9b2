package main

import "folder-sync/cmd"

func main() {
	cmd.Execute()
}
