package main

import "github.com/KaramelBytes/dosifier-cli/cmd"

func main() {
	cmd.Execute()
}
