// Command zmacoff quiesces a radio coprocessor: switches receive off and
// disconnects. Descends from the teacher's npioff.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/frans-willem/hostmac/radiobridge"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	serialPath = kingpin.Flag("device", "Path to serial port device").Required().String()
	baudRate   = kingpin.Flag("baud", "Serial port baudrate").Default("115200").Uint()
)

func main() {
	kingpin.Version("0.1")
	kingpin.Parse()

	port, err := radiobridge.OpenSerial(*serialPath, *baudRate)
	if err != nil {
		fmt.Printf("Error opening NPI link: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "zmacoff: ", log.LstdFlags)
	client := radiobridge.NewClient(port, logger)

	fmt.Printf("Switching receive off...")
	if err := client.On(false); err != nil {
		fmt.Printf("Error switching RX off: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("done")
}
