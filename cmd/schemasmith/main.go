// Package main is the entry point for SchemaSmith.
package main

func main() {
	Execute()
}
