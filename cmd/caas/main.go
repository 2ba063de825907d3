// Package main is the entry point for caas.
package main

func main() {
	Execute()
}
