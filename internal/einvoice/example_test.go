package einvoice_test

import (
	"fmt"

	"twinvoice/internal/einvoice"
)

func ExampleParsePair() {
	header := "AB12345678" + "1140103" + "1A2b" + "00000000" + "00000064" + "00000000" + "12345678"
	qrA := header + ":Milk:2:30:Egg:1:40"
	qrB := header

	inv, err := einvoice.ParsePair(qrA, qrB)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(inv.InvoiceNumberString())
	fmt.Println(inv.TimestampString())
	fmt.Println(inv.AmountString())
	fmt.Println(inv.ItemsString())
	// Output:
	// AB-12345678
	// 2025/01/03 00:00:00
	// $100
	// Milk : 2 * 30 = 60； Egg : 1 * 40 = 40
}

func ExampleParseBestEffort() {
	header := "AB12345678" + "1140103" + "1A2b" + "00000000" + "00000064" + "00000000" + "12345678"

	// "**" as the second payload means the whole invoice fits in the first QR.
	inv, err := einvoice.ParseBestEffort(header+":Bread:1:25", "**")
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(inv.InvoiceNumberString())
	fmt.Println(inv.ItemsString())
	// Output:
	// AB-12345678
	// Bread : 1 * 25 = 25
}
