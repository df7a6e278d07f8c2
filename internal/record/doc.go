// Package record defines the synced dataset's record model and its
// canonical serialization.
//
// A record is a JSON object with three identity fields (id, name,
// category) and any number of additional fields that are preserved
// verbatim. Values are restricted to a sealed set of types:
//   - Null, String, Int, Float, Bool, Array, Object
//   - integer literals decode as Int (exact to 64 bits); any other
//     number decodes as Float and is written in the ECMAScript form
//     RFC 8785 prescribes, so 2.0 and 1e3 hash as 2 and 1000
//
// The content hash published in a package manifest is the SHA-256 digest
// of the RFC 8785 canonical JSON of the record array (sorted keys by
// UTF-16 code units, NFC-normalized strings, no HTML escaping). Publisher
// and client must agree on this form byte for byte.
package record
