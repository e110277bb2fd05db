// Small helper to generate a dev ECDSA key (secp256k1) and print
// - private key (hex), usable as ATTESTOR_PRIVATE_KEY
// - compressed public key (hex)
// - Ethereum address to fund on the target network
package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

func main() {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	fmt.Printf("ATTESTOR_PRIVATE_KEY=%x\n", crypto.FromECDSA(key))
	fmt.Printf("ATTESTOR_PUB=%x\n", crypto.CompressPubkey(&key.PublicKey))
	fmt.Printf("ATTESTOR_ADDR=%s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
}
