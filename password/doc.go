// Package password hashes and verifies passwords.
//
// # Output format
//
// [Argon2] writes PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Bcrypt] writes standard $2a$/$2b$ strings. [Chain] hashes with one scheme
// and verifies whichever scheme produced a stored digest, and
// [Chain.NeedsRehash] flags digests that should be upgraded after the next
// successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive digests.
//   - Import any other authcore package.
//   - Log plaintext passwords.
package password
