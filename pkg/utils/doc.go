// Package utils provides vector helpers shared by the encoders and the CLI.
package utils
