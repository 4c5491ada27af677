package object

// CommitSigningPayload returns the bytes that are signed for a commit: the
// canonical encoding with the signature field cleared.
func CommitSigningPayload(c *CommitObj) []byte {
	if c == nil {
		return nil
	}
	unsigned := *c
	unsigned.Signature = ""
	return MarshalCommit(&unsigned)
}
