// Package veil provides field-level encryption, blind-index digests and
// masking for structs crossing a data-access boundary.
//
// # Tags
//
// Field behaviour is declared with struct tags:
//
//	write.digest:"auto"        store a digest of the plaintext in <Field>Digest
//	write.digest:"PhoneIdx"    store it in PhoneIdx instead
//	write.encrypt:"phone"      encrypt with the active key of slot "phone"
//	read.decrypt:"auto"        decrypt values in envelope form
//	read.mask:"phone"          mask on read (phone, email, id_card, bank_card,
//	                           name, custom:<pattern>)
//
// On write, digests are computed from the original plaintext before any
// field is encrypted. On read, fields are decrypted before masking, and a
// value still in envelope form is never masked.
//
// # Basic Usage
//
//	type Customer struct {
//	    ID          int64
//	    Phone       string `write.digest:"auto" write.encrypt:"phone" read.decrypt:"auto" read.mask:"phone"`
//	    PhoneDigest string
//	}
//
//	mgr := keys.NewManager(keys.NewMemoryStore())
//	crypter, _ := veil.NewCrypter(mgr)
//	digester, _ := veil.NewDigester(salt)
//	pipeline, _ := veil.NewPipeline(crypter, digester)
//
//	args, err := pipeline.BeforeWrite(ctx, &customer)   // encrypt, digest
//	out := pipeline.AfterRead(ctx, rows)                // decrypt, mask
//
// Pipeline.Intercept wraps a data-access call and picks the hook from the
// operation name (see Classifier). The gormplugin package installs the
// hooks as gorm callbacks.
//
// # Envelopes
//
// Ciphertext is stored as text:
//
//	$<version>$<base64 ciphertext>
//
// The version names the key that sealed the value, so values stay readable
// after the slot's key is rotated. Envelopes naming a slot instead of a
// version are accepted on read.
//
// # Ciphers
//
// The default suite is SM4 in ECB mode with PKCS#5 padding. AES and the
// CBC and GCM modes are available through NewSuite; GCM is the only
// authenticated mode.
//
// # Digests
//
// Digests are deterministic: equal plaintexts under one salt give equal
// digests, so they can be indexed and queried. SM3 is the default;
// SHA-256, SHA-512, BLAKE2b and HMAC-SHA256 are available.
//
// # Codec Providers
//
// Processor[T] pairs a Pipeline with a Codec. Implementations live in
// subpackages: json, xml, yaml, msgpack, bson.
//
// # Override Interfaces
//
// Types can bypass reflection by implementing Sealer (write path) or
// Unsealer (read path).
package veil
