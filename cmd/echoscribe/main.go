// Command echoscribe transcribes recorded lessons into speaker-attributed,
// searchable transcripts.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
