package vector

import "github.com/google/uuid"

// PointID derives the vector point ID for a playbook entry name as a
// version-5 UUID in the DNS namespace. The same name always maps to the
// same ID, so repeated indexing of an entry supersedes its prior vector.
func PointID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name)).String()
}
