package common

// SessionTokenBytes is the number of random bytes behind every session token
// (256 bits). The token itself is the hex encoding, twice as long.
const SessionTokenBytes = 32
