// Command zmacd drives an IEEE 802.15.4 radio coprocessor over a serial NPI
// link and runs a mac.Service against it, printing received data frames and
// MLME indications to stdout. Descends from the teacher's smacprint, with
// the SMAC-specific frame drivers (appdrivers/) replaced by mac.Service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/frans-willem/hostmac/ieee802154"
	"github.com/frans-willem/hostmac/ieee802154/mac"
	"github.com/frans-willem/hostmac/radiobridge"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	serialPath    = kingpin.Flag("device", "Path to serial port device").Required().String()
	baudRate      = kingpin.Flag("baud", "Serial port baudrate").Default("115200").Uint()
	panID         = kingpin.Flag("pan", "PAN ID to operate on").Default("0xBEEF").Uint16()
	channel       = kingpin.Flag("channel", "802.15.4 channel number").Default("11").Uint8()
	shortAddr     = kingpin.Flag("short-addr", "Short address to claim").Default("0x0001").Uint16()
	extendedAddr  = kingpin.Flag("extended-addr", "Extended (EUI-64) address to claim").Default("0x0000000000000001").Uint64()
	txPower       = kingpin.Flag("tx-power", "Transmit power in dBm").Default("0").Int8()
	panCoord      = kingpin.Flag("coordinator", "Start as PAN coordinator").Bool()
)

func main() {
	kingpin.Version("0.1")
	kingpin.Parse()

	port, err := radiobridge.OpenSerial(*serialPath, *baudRate)
	if err != nil {
		fmt.Printf("Error opening NPI link: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "zmacd: ", log.LstdFlags)
	client := radiobridge.NewClient(port, logger)

	indications := make(chan mac.MLMEIndication, 16)
	dataIndications := make(chan mac.DataIndication, 16)
	svc := mac.NewService(client, ieee802154.ExtendedAddress(*extendedAddr), uint16(*channel), uint16(*txPower), indications, dataIndications, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	fmt.Printf("Configuring MAC: pan=%#04x channel=%d short=%#04x coordinator=%v\n", *panID, *channel, *shortAddr, *panCoord)
	if status := svc.Reset(true); status != mac.Success {
		fmt.Printf("Error resetting MAC: %v\n", status)
		os.Exit(1)
	}
	if status := svc.Set(mac.MacPanId, mac.NewPANIDValue(ieee802154.PANID(*panID))); status != mac.Success {
		fmt.Printf("Error setting PAN ID: %v\n", status)
		os.Exit(1)
	}
	if status := svc.Set(mac.MacShortAddress, mac.NewShortAddressValue(ieee802154.ShortAddress(*shortAddr))); status != mac.Success {
		fmt.Printf("Error setting short address: %v\n", status)
		os.Exit(1)
	}
	if status := svc.Set(mac.PhyCurrentChannel, mac.NewU16Value(uint16(*channel))); status != mac.Success {
		fmt.Printf("Error setting channel: %v\n", status)
		os.Exit(1)
	}
	if status := svc.Set(mac.PhyTxPower, mac.NewU16Value(uint16(*txPower))); status != mac.Success {
		fmt.Printf("Error setting TX power: %v\n", status)
		os.Exit(1)
	}
	if *panCoord {
		fmt.Println("Operating as PAN coordinator; send beacons with a separate MLMEBeaconRequest as needed")
	}
	fmt.Println("MAC configured, listening for frames (Ctrl-C to exit)...")

	for {
		select {
		case ind := <-dataIndications:
			printDataIndication(ind)
		case ind := <-indications:
			printMLMEIndication(ind)
		case err := <-client.Closed():
			fmt.Printf("NPI link closed: %v\n", err)
			os.Exit(1)
		}
	}
}

func printDataIndication(ind mac.DataIndication) {
	fmt.Printf("RX data from %s: ", formatAddress(ind.Source))
	for _, b := range ind.Payload {
		fmt.Printf("%02x ", b)
	}
	fmt.Println()
}

func printMLMEIndication(ind mac.MLMEIndication) {
	switch v := ind.(type) {
	case mac.MLMEBeaconNotifyIndication:
		fmt.Printf("Beacon from %s: BSN=%d\n", formatAddress(&v.PANDescriptor.CoordAddress), v.BSN)
	case mac.MLMEAssociateIndication:
		fmt.Printf("Association request from %016x, capability=%+v\n", uint64(v.DeviceAddress), v.Capability)
	case mac.MLMECommStatusIndication:
		fmt.Printf("Comm status %s -> %s: %v\n", formatAddress(&v.SrcAddr), formatAddress(&v.DstAddr), v.Status)
	default:
		fmt.Printf("Indication: %+v\n", v)
	}
}

func formatAddress(addr *ieee802154.FullAddress) string {
	if addr == nil {
		return "<none>"
	}
	return fmt.Sprintf("%#04x/%s", uint16(addr.PANID), addr.Address.String())
}
