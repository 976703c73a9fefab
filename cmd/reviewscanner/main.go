// Package main provides the entry point for the ReviewScanner CLI.
//
// ReviewScanner extracts reviews from supported sites, asks the prediction
// backend whether each one is fake, and annotates the page with verdicts.
//
// Usage:
//
//	reviewscanner scan --site yelp <url-or-file>
//	reviewscanner serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}
