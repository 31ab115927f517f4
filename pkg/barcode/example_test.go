package barcode_test

import (
	"fmt"

	"github.com/matzehuels/barsheet/pkg/barcode"
)

func ExampleCode128_Encode() {
	enc := barcode.NewCode128(barcode.DefaultMaxLength)
	sym, err := enc.Encode("ABC123")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer sym.Release()

	fmt.Println(sym.Kind, sym.Text, sym.Modules[0])
	// Output: Code 128 ABC123 true
}
