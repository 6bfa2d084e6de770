// Command posture compares body poses against reference poses, either
// from images on the command line or live from a camera.
package main

func main() {
	Execute()
}
