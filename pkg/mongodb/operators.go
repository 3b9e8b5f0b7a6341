package mongodb

const (
	In     = "$in"
	Or     = "$or"
	And    = "$and"
	Exists = "$exists"
	Set    = "$set"
	Unset  = "$unset"
	Ne     = "$ne"
	Gt     = "$gt"
	Lte    = "$lte"
)
