// Package signer signs and recovers firmware signatures on the secp256k1 curve.
//
// Signatures are deterministic (RFC 6979) ECDSA signatures over the SHA-256
// digest of the message, serialized in compact form as 64 bytes (r || s).
// The public key is not stored; Recover derives a candidate key from a
// signature and a recovery id (0 to 3). A signature alone cannot tell which
// candidate is the signer, so callers compare candidates against a known key.
//
// # Usage
//
//	key, err := signer.ParsePrivateKey(os.Getenv("FIRMWARE_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	var s signer.Secp256k1
//	sig, _ := s.Sign(firmware, key)
//
//	for id := 0; id <= signer.MaxRecoveryID; id++ {
//	    pub, err := s.Recover(firmware, sig, id)
//	    if err == nil {
//	        fmt.Printf("%d: %x\n", id, pub)
//	    }
//	}
package signer
