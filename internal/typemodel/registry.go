package typemodel

// Model versions sent as the "v" header, per application.
const (
	TutanotaModelVersion = "102"
	SysModelVersion      = "143"
)

// Well-known attribute ids consumed outside the generic decryption path.
const (
	// MailboxGroupRootMailbox points at the group's mailbox.
	MailboxGroupRootMailbox = "699"
	// MailBoxFolders is the MailSetRef aggregation on MailBox.
	MailBoxFolders = "443"
	// MailSetRefList is the mail-sets list id inside the aggregation.
	MailSetRefList = "442"
	// MailSetID and MailID are the tuple-id attributes of the list types.
	MailSetID = "431"
	MailID    = "99"
	// MailSetName and MailSetColor are the encrypted strings on MailSet.
	MailSetName  = "435"
	MailSetColor = "1479"
	// MailSetFolderType selects the display-name fallback.
	MailSetFolderType = "436"
	// MailSetEntries is the entries list of a mail set.
	MailSetEntries = "1459"
	// MailSetEntryMail is the mail tuple reference on MailSetEntry.
	MailSetEntryMail = "1456"
	// MailSubject and friends are the encrypted Mail headers.
	MailSubject                 = "105"
	MailSentDate                = "106"
	MailReceivedDate            = "107"
	MailUnread                  = "426"
	MailConfidential            = "466"
	MailDifferentEnvelopeSender = "617"
	MailSender                  = "111"
	// MailAddressAddress is the plain address inside a MailAddress
	// aggregation; its name attribute is encrypted and stays untouched.
	MailAddressAddress = "115"
	// GroupFormerGroupKeys is the GroupKeysRef aggregation on Group;
	// GroupKeysRefList is the former-keys list id inside it.
	GroupFormerGroupKeys = "2273"
	GroupKeysRefList     = "2272"
	// GroupKeyOwnerEncGKey is the chain link: this key wrapped under the
	// next-newer version's key.
	GroupKeyOwnerEncGKey = "2267"
	// User attributes: the user group membership, the membership list,
	// and the customer reference.
	UserUserGroup   = "95"
	UserMemberships = "96"
	UserCustomer    = "991"
	// GroupMembership aggregation attributes.
	MembershipSymEncGKey      = "27"
	MembershipGroup           = "29"
	MembershipGroupType       = "1030"
	MembershipGroupKeyVersion = "2246"
	MembershipSymKeyVersion   = "2247"
	// CustomerType is the account type on Customer.
	CustomerType = "36"
)

// GroupTypeMail is the groupType value of a mail group membership.
const GroupTypeMail = "5"

// MailboxGroupRoot locates the mailbox of a mail group.
var MailboxGroupRoot = &Type{
	App:     "tutanota",
	Name:    "MailboxGroupRoot",
	Version: TutanotaModelVersion,
	Values: values(
		Value{ID: "694", Type: TypeNumber},
		Value{ID: "695", Type: TypeString},
		Value{ID: "696", Type: TypeString},
		Value{ID: "697", Type: TypeString},
	),
}

// MailBox is the mailbox entity carrying the folder-list reference.
var MailBox = &Type{
	App:       "tutanota",
	Name:      "MailBox",
	Version:   TutanotaModelVersion,
	Encrypted: true,
	Values: values(
		Value{ID: "126", Type: TypeNumber},
		Value{ID: "127", Type: TypeString},
		Value{ID: "128", Type: TypeString},
		Value{ID: "569", Type: TypeDate},
		Value{ID: "590", Type: TypeString},
		Value{ID: "591", Type: TypeBytes},
		Value{ID: "1396", Type: TypeNumber},
	),
	OwnerGroup:         "590",
	OwnerEncSessionKey: "591",
	OwnerKeyVersion:    "1396",
}

// MailSet is a folder or label container.
var MailSet = &Type{
	App:       "tutanota",
	Name:      "MailSet",
	Version:   TutanotaModelVersion,
	Encrypted: true,
	Values: values(
		Value{ID: "430", Type: TypeNumber},
		Value{ID: "431", Type: TypeString},
		Value{ID: "432", Type: TypeString},
		Value{ID: "434", Type: TypeBytes},
		Value{ID: MailSetName, Type: TypeString, Encrypted: true},
		Value{ID: MailSetFolderType, Type: TypeNumber},
		Value{ID: "589", Type: TypeString},
		Value{ID: "1399", Type: TypeNumber},
		Value{ID: MailSetColor, Type: TypeString, Encrypted: true},
	),
	OwnerGroup:         "589",
	OwnerEncSessionKey: "434",
	OwnerKeyVersion:    "1399",
}

// MailSetEntry links a mail set to one mail.
var MailSetEntry = &Type{
	App:     "tutanota",
	Name:    "MailSetEntry",
	Version: TutanotaModelVersion,
	Values: values(
		Value{ID: "1451", Type: TypeNumber},
		Value{ID: "1452", Type: TypeString},
		Value{ID: "1453", Type: TypeString},
		Value{ID: "1454", Type: TypeString},
	),
}

// Mail is the message-header entity.
var Mail = &Type{
	App:       "tutanota",
	Name:      "Mail",
	Version:   TutanotaModelVersion,
	Encrypted: true,
	Values: values(
		Value{ID: "98", Type: TypeNumber},
		Value{ID: "99", Type: TypeString},
		Value{ID: "102", Type: TypeBytes},
		Value{ID: "103", Type: TypeString},
		Value{ID: MailSubject, Type: TypeString, Encrypted: true},
		Value{ID: MailSentDate, Type: TypeDate},
		Value{ID: MailReceivedDate, Type: TypeDate},
		Value{ID: "108", Type: TypeNumber},
		Value{ID: MailUnread, Type: TypeBoolean, Encrypted: true},
		Value{ID: MailConfidential, Type: TypeBoolean, Encrypted: true},
		Value{ID: "587", Type: TypeString},
		Value{ID: MailDifferentEnvelopeSender, Type: TypeString, Encrypted: true},
		Value{ID: "866", Type: TypeBoolean, Encrypted: true},
		Value{ID: "1120", Type: TypeNumber, Encrypted: true},
		Value{ID: "1346", Type: TypeNumber, Encrypted: true},
		Value{ID: "1395", Type: TypeNumber},
		Value{ID: "1677", Type: TypeNumber, Encrypted: true},
	),
	OwnerGroup:         "587",
	OwnerEncSessionKey: "102",
	OwnerKeyVersion:    "1395",
}

// Group is the access-control unit; the walker reads its former-keys list.
var Group = &Type{
	App:     "sys",
	Name:    "Group",
	Version: SysModelVersion,
	Values: values(
		Value{ID: "6", Type: TypeNumber},
		Value{ID: "7", Type: TypeString},
		Value{ID: "11", Type: TypeBytes},
		Value{ID: "46", Type: TypeNumber},
		Value{ID: "2270", Type: TypeNumber},
	),
}

// GroupKey is one link of a group's former-key chain.
var GroupKey = &Type{
	App:     "sys",
	Name:    "GroupKey",
	Version: SysModelVersion,
	Values: values(
		Value{ID: "2256", Type: TypeNumber},
		Value{ID: "2257", Type: TypeString},
		Value{ID: GroupKeyOwnerEncGKey, Type: TypeBytes},
		Value{ID: "2274", Type: TypeNumber},
	),
}

// User carries the key material parsed at unlock time.
var User = &Type{
	App:     "sys",
	Name:    "User",
	Version: SysModelVersion,
	Values: values(
		Value{ID: "85", Type: TypeNumber},
		Value{ID: "86", Type: TypeString},
		Value{ID: "90", Type: TypeBytes},
		Value{ID: "92", Type: TypeBoolean},
		Value{ID: "93", Type: TypeBoolean},
	),
}

// Customer backs the profile lookup.
var Customer = &Type{
	App:     "sys",
	Name:    "Customer",
	Version: SysModelVersion,
	Values: values(
		Value{ID: "32", Type: TypeNumber},
		Value{ID: "33", Type: TypeString},
		Value{ID: CustomerType, Type: TypeNumber},
		Value{ID: "902", Type: TypeBoolean},
	),
}

var registry = map[string]*Type{}

func register(types ...*Type) {
	for _, t := range types {
		registry[t.Name] = t
	}
}

func init() {
	register(MailboxGroupRoot, MailBox, MailSet, MailSetEntry, Mail, Group, GroupKey, User, Customer)
}

// Get returns the model for a type name, or nil when unknown.
func Get(name string) *Type {
	return registry[name]
}
