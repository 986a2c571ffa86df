// Package main provides the entry point for the objdetect CLI.
//
// objdetect uploads images to S3 with presigned POST credentials and asks a
// remote detection service which objects each image contains.
//
// Usage:
//
//	objdetect upload <image>...
//	objdetect upload 'photos/**/*.jpg'
//	objdetect history --list
//
// See --help for all available options.
package main

func main() {
	Execute()
}
