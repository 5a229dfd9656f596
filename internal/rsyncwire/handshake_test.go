package rsyncwire

import (
	"os"
	"testing"
)

func TestNegotiateVersionPicksHighestMutual(t *testing.T) {
	supported := []int32{29, 28, 27}
	got, err := negotiateVersion(29, 28, supported)
	if err != nil {
		t.Fatal(err)
	}
	if got != 28 {
		t.Errorf("negotiateVersion(29, 28, ...) = %d, want 28", got)
	}
}

func TestNegotiateVersionNoneMutual(t *testing.T) {
	_, err := negotiateVersion(29, 5, []int32{29, 28, 27})
	if err == nil {
		t.Error("expected error when no version is mutually supported")
	}
}

func TestHandshakeOverPipe(t *testing.T) {
	// Wire client->server and server->client with separate OS pipes so reads
	// block until the peer writes, exercising Handshake end-to-end without a
	// real net.Conn. Both peers write before they read, so the pipes must
	// buffer: the kernel pipe buffer lets each small write complete before
	// the peer reads it.
	clientToServerR, clientToServerW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	serverToClientR, serverToClientW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}

	server := &Conn{Reader: clientToServerR, Writer: serverToClientW}
	client := &Conn{Reader: serverToClientR, Writer: clientToServerW}

	type result struct {
		res HandshakeResult
		err error
	}
	serverCh := make(chan result, 1)
	go func() {
		res, err := Handshake(server, 29, []int32{29, 28, 27}, 0b111, 0b111)
		serverCh <- result{res, err}
	}()

	clientRes, err := Handshake(client, 28, []int32{29, 28, 27}, 0b011, 0b111)
	if err != nil {
		t.Fatal(err)
	}
	serverResult := <-serverCh
	if serverResult.err != nil {
		t.Fatal(serverResult.err)
	}

	if clientRes.ProtocolVersion != 28 || serverResult.res.ProtocolVersion != 28 {
		t.Errorf("expected both sides to negotiate version 28, got client=%d server=%d",
			clientRes.ProtocolVersion, serverResult.res.ProtocolVersion)
	}
	if clientRes.Capabilities != 0b011 || serverResult.res.Capabilities != 0b011 {
		t.Errorf("expected capabilities to intersect to 0b011, got client=%b server=%b",
			clientRes.Capabilities, serverResult.res.Capabilities)
	}
}

func TestVerifyResponseConstantTime(t *testing.T) {
	challenge := []byte("0123456789abcdef")
	want := ChallengeResponse(challenge, "secret")
	if !VerifyResponse(ChallengeResponse(challenge, "secret"), want) {
		t.Error("matching response should verify")
	}
	if VerifyResponse(ChallengeResponse(challenge, "wrong"), want) {
		t.Error("mismatching response should not verify")
	}
}
