// Package envelope reads and writes firmware envelopes, the on-disk container
// pairing a firmware payload with its metadata and signatures.
//
// # Version 1
//
// A JSON header carrying a hex "signature" field, followed by the payload:
//
//	[HEADER_LEN(4, LE)][HEADER JSON...][0x00][PAYLOAD...]
//
// # Version 2
//
// A binary header starting with the magic "~fwdata!" and the big-endian
// decompressed payload size, a signature block holding two 128-character hex
// signatures, and a payload made of independently sized compressed blocks:
//
//	[HEADER_LEN(4, LE)][MAGIC(8)][SIZE(4, BE)][EXTRA...][SIG1(128)][SIG2(128)][0x00][BLOCKS...]
//
// HEADER_LEN counts the header and the signature block. Signature 1 covers
// the compressed payload and signature 2 covers the decompressed payload.
//
// # Usage
//
//	header, payload, err := envelope.ReadV1("keystone3.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	signed, err := envelope.SignV1(header, payload, key, signer.Secp256k1{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = envelope.WriteV1("keystone3-signed.bin", signed, payload)
//
// Signing and block decoding are supplied by the caller through the Signer,
// Recoverer and BlockDecoder interfaces; see the signer and blockcodec packages.
package envelope
