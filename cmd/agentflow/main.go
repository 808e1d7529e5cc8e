// Command agentflow serves the agent orchestration HTTP API or runs single
// queries from the terminal.
package main

func main() {
	Execute()
}
