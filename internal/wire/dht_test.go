package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessage_CreateRoundTrip(t *testing.T) {
	m := Message{
		TransID: 12,
		From:    Address{ID: 1, Port: 7000},
		Type:    Create,
		Key:     "foo",
		Value:   "bar",
		Replica: Secondary,
	}
	got, err := DecodeMessage(EncodeMessage(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestMessage_ReadRoundTrip(t *testing.T) {
	m := Message{TransID: 1, From: Address{ID: 2, Port: 7001}, Type: Read, Key: "foo"}
	got, err := DecodeMessage(EncodeMessage(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestMessage_DeleteRoundTrip(t *testing.T) {
	m := Message{TransID: 2, From: Address{ID: 2, Port: 7001}, Type: Delete, Key: "foo"}
	got, err := DecodeMessage(EncodeMessage(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestMessage_ReplyRoundTrip(t *testing.T) {
	m := Message{TransID: 3, From: Address{ID: 1, Port: 7000}, Type: Reply, Success: true}
	got, err := DecodeMessage(EncodeMessage(m))
	require.NoError(t, err)
	require.Equal(t, m, got)

	m.Success = false
	got, err = DecodeMessage(EncodeMessage(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestMessage_ReadReplyRoundTrip(t *testing.T) {
	m := Message{TransID: 4, From: Address{ID: 1, Port: 7000}, Type: ReadReply, Success: true, Value: "bar"}
	got, err := DecodeMessage(EncodeMessage(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestMessage_ReadReplyRoundTrip_Failure(t *testing.T) {
	m := Message{TransID: 5, From: Address{ID: 1, Port: 7000}, Type: ReadReply, Success: false, Value: ""}
	got, err := DecodeMessage(EncodeMessage(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestDecodeMessage_Malformed(t *testing.T) {
	cases := []string{
		"",
		"1::2:7000",
		"1::2:7000::BOGUS::foo",
		"1::2:7000::CREATE::foo::bar",
		"1::2:7000::CREATE::foo::bar::SIDEKICK",
		"1::2:7000::REPLY::maybe",
		"x::2:7000::READ::foo",
		"1::x::READ::foo",
	}
	for _, s := range cases {
		if _, err := DecodeMessage(s); err == nil {
			t.Errorf("DecodeMessage(%q) should have failed", s)
		}
	}
}

func TestReplicaLabel_String(t *testing.T) {
	require.Equal(t, "PRIMARY", Primary.String())
	require.Equal(t, "SECONDARY", Secondary.String())
	require.Equal(t, "TERTIARY", Tertiary.String())
}
