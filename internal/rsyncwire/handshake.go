package rsyncwire

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"github.com/go-rsync/rsync/internal/rsyncchecksum"
)

// HandshakeResult carries the outcome of a successful handshake (spec.md
// §4.4): the negotiated protocol version and the effective capability set.
type HandshakeResult struct {
	ProtocolVersion int32
	Capabilities    uint32
}

// Handshake performs the version and capability exchange described in
// spec.md §4.4 steps 1-3. Both peers write their own version, read the
// peer's, and settle on the highest mutually supported version; then both
// exchange capability bitmasks and intersect with locally supported ones.
func Handshake(c *Conn, localVersion int32, supported []int32, localCaps, supportedCaps uint32) (HandshakeResult, error) {
	if err := c.WriteUint32BE(uint32(localVersion)); err != nil {
		return HandshakeResult{}, err
	}
	peerVersionRaw, err := c.ReadUint32BE()
	if err != nil {
		return HandshakeResult{}, err
	}
	peerVersion := int32(peerVersionRaw)

	negotiated, err := negotiateVersion(localVersion, peerVersion, supported)
	if err != nil {
		return HandshakeResult{}, err
	}

	if err := c.WriteUint32BE(localCaps); err != nil {
		return HandshakeResult{}, err
	}
	peerCaps, err := c.ReadUint32BE()
	if err != nil {
		return HandshakeResult{}, err
	}

	return HandshakeResult{
		ProtocolVersion: negotiated,
		Capabilities:    localCaps & peerCaps & supportedCaps,
	}, nil
}

// negotiateVersion picks the highest v such that v <= local, v <= peer, and
// v appears in supported (spec.md §8). supported is assumed sorted newest
// first, matching SupportedProtocolVersions.
func negotiateVersion(local, peer int32, supported []int32) (int32, error) {
	for _, v := range supported {
		if v <= local && v <= peer {
			return v, nil
		}
	}
	return 0, fmt.Errorf("rsyncwire: no mutually supported protocol version (local=%d peer=%d supported=%v)", local, peer, supported)
}

// ChallengeLen is the fixed length of the random challenge the server sends
// when a shared-secret token is configured.
const ChallengeLen = 16

// ServerChallenge generates and writes a random challenge, to be answered
// with ChallengeResponse.
func ServerChallenge(c *Conn) ([]byte, error) {
	challenge := make([]byte, ChallengeLen)
	if _, err := rand.Read(challenge); err != nil {
		return nil, err
	}
	if _, err := c.Writer.Write(challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

// ChallengeResponse computes the client's reply to a server challenge:
// strong_digest(challenge || token, MD5, 0), per spec.md §4.4 step 4. It
// goes through rsyncchecksum.Sum rather than a bare md5.Sum so the reply
// gets the same 4-byte zero-seed prefix every other strong-checksum use in
// this package applies.
func ChallengeResponse(challenge []byte, token string) []byte {
	data := make([]byte, 0, len(challenge)+len(token))
	data = append(data, challenge...)
	data = append(data, token...)
	return rsyncchecksum.Sum(rsyncchecksum.MD5, 0, data)
}

// VerifyResponse compares an observed response against the expected one in
// constant time, independent of where the first mismatching byte falls
// (spec.md §8, "Auth comparison is independent of byte-position of the
// first mismatch").
func VerifyResponse(got, want []byte) bool {
	if len(got) != len(want) {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}
