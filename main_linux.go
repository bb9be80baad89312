package main

func main() {
	setupCrashLog()
	run()
}
