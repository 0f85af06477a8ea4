package main

import (
	"fmt"

	"github.com/fatih/color"
)

const helpString = `Replay rtpdump recordings over UDP

Usage: rtpxplay [OPTION]...

Input:
  -i, --input=FILE       rtpdump recording to replay, "-" for stdin
                           (default: -)
  -l, --loop             Restart from the top at end of file

Output:
  -d, --dest=ADDR        Replay destination, as host:port
                           (default: 127.0.0.1:5004)
  -f, --full-rate        Ignore recorded timing and send as fast as possible
  -r, --strip-red=NUM    Strip RED (RFC 2198) encapsulation with the given
                           payload type before sending

Miscellaneous:
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits`

// Help information is printed and program exits
func help() {
	c := color.New(color.FgCyan)
	c.Println(" _ __ | |_  _ __ __  __ _ __ | | __ _  _   _ ")
	c.Println("| '__|| __|| '_ \\\\ \\/ /| '_ \\| |/ _` || | | |")
	c.Println("| |   | |_ | |_) |>  < | |_) | | (_| || |_| |")
	c.Println("|_|    \\__|| .__//_/\\_\\| .__/|_|\\__,_| \\__, |")
	c.Println("           |_|         |_|             |___/ ")
	fmt.Println(helpString)
}
