// ghostcrew forms ephemeral agent teams that decompose a goal into a task
// tree, execute it step by checkpointed step, and recover from failures.
package main

func main() {
	Execute()
}
