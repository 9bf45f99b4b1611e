// Package main provides the entry point for the pagebeacon CLI.
//
// pagebeacon replays scripted page visits through a client-side analytics
// tracker, collects the resulting hits with a local collector and
// summarizes what was recorded.
//
// Usage:
//
//	pagebeacon collect
//	pagebeacon replay --endpoint http://127.0.0.1:8787/g/collect visit.yaml
//	pagebeacon report --markdown
//
// See --help for all available options.
package main

func main() {
	Execute()
}
