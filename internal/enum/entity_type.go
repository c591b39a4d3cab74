package enum

type EntityType string

const (
	EMAIL       EntityType = "EMAIL"
	BATCH       EntityType = "BATCH"
	ATTACHMENTS EntityType = "ATTACHMENTS"
)

func (entityType EntityType) String() string {
	return string(entityType)
}
