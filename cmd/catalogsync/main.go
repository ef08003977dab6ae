package main

import "catalogsync/internal/cmd"

func main() {
	cmd.Execute()
}
