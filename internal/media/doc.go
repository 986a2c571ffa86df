// Package media turns command-line file arguments into loaded FileHandles.
//
// Arguments may be plain paths or doublestar globs such as "photos/**/*.jpg".
// Each selected file is read once, checked against a size limit, hashed with
// SHA3-256 and scanned for a small EXIF summary (camera, software, capture
// time, presence of GPS tags). Files without EXIF load normally.
package media
