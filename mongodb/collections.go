package mongodb

const (
	// PATsCollection holds the durable personal access token records.
	PATsCollection = "personal_access_tokens"
)
