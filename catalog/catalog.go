// Package catalog holds the immutable verb and object classification tables
// shared by notification fan-out and read-side shaping. The tables are loaded
// once and never mutated at runtime; tests inject alternate catalogs through
// component configuration.
package catalog

import "strings"

// Raw action names recorded on activity-log rows. Actions are verbs from the
// actor's point of view; the fan-out translates them into the event the
// recipient observes.
const (
	ActionShare                   = "Share"
	ActionReshare                 = "Reshare"
	ActionRevoke                  = "Revoke"
	ActionSelfRevoke              = "SelfRevoke"
	ActionEditSharing             = "EditSharing"
	ActionAccessExpired           = "AccessExpired"
	ActionPushUpdate              = "PushUpdate"
	ActionView                    = "View"
	ActionPrint                   = "Print"
	ActionDownload                = "download"
	ActionOpen                    = "open"
	ActionChangeRecipients        = "ChangeRecipients"
	ActionChangeName              = "ChangeName"
	ActionChangePassword          = "ChangePassword"
	ActionChangeServicePreference = "ChangeServicePreference"
	ActionEmailVerified           = "EmailVerified"
	ActionEmailRemoved            = "EmailRemoved"
	ActionPrimaryEmailChanged     = "PrimaryEmailChanged"
	ActionChangeTeamInfo          = "ChangeTeamInfo"
	ActionUserJoinTeam            = "UserJoinTeam"
	ActionChangeUserRole          = "ChangeUserRole"
	ActionDeleteAccount           = "DeleteAccount"
	ActionDelete                  = "Delete"
	ActionCreateDirectory         = "CreateDirectory"
	ActionDeleteDirectory         = "DeleteDirectory"
	ActionMove                    = "Move"
	ActionRename                  = "Rename"
	ActionRenameFolder            = "RenameFolder"
	ActionDeleteFolder            = "DeleteFolder"
	ActionEditFile                = "EditFile"
	ActionReconvert               = "Reconvert"
	ActionRefuse                  = "Refuse"
)

// Event names stored on notification rows: what the recipient sees.
const (
	EventShared              = "Shared"
	EventReshared            = "Reshared"
	EventRevoked             = "Revoked"
	EventDownstreamRevoked   = "DownstreamReceiverRevoked"
	EventRecipientDelete     = "RecipientDelete"
	EventEditedSharing       = "EditedSharing"
	EventRecipientExpired    = "RecipientAccessExpired"
	EventDownstreamExpired   = "DownstreamReceiverAccessExpired"
	EventPushedUpdate        = "PushedUpdate"
	EventViewed              = "Viewed"
	EventDownstreamViewed    = "DownstreamReceiverViewed"
	EventPrinted             = "Printed"
	EventChangedName         = "ChangedName"
	EventChangedSender       = "ChangedSender"
	EventAccountDeleted      = "AccountDeleted"
	EventReconverted         = "Reconverted"
	EventChangedRecipients   = "ChangeRecipients"
	EventChangedTeamInfo     = "ChangeTeamInfo"
	EventUserJoinedTeam      = "UserJoinTeam"
	EventChangedUserRole     = "ChangeUserRole"
	EventServicePrefsChanged = "ChangeServicePreference"
)

// Canonical verb keys: the closed set of classes the reader normalizes stored
// event names into.
const (
	VerbShare      = "share"
	VerbRevoke     = "revoke"
	VerbChange     = "change"
	VerbDelete     = "delete"
	VerbView       = "view"
	VerbPrint      = "print"
	VerbDistribute = "distribute"
	VerbMove       = "move"
	VerbRename     = "rename"
	VerbCreate     = "create"
	VerbRevise     = "revise"
	VerbReshare    = "reshare"
	VerbExpire     = "expire"
	VerbReconvert  = "reconvert"
	VerbRefuse     = "refuse"
)

// Object types a notification can be about. Everything not listed in the
// object table defaults to ObjectFile.
const (
	ObjectFile       = "file"
	ObjectProfile    = "profile"
	ObjectTeam       = "team"
	ObjectMembership = "membership"
	ObjectAccount    = "account"
)

// Catalog bundles the classification tables. The zero value is unusable;
// construct with Default or build a custom one in tests.
type Catalog struct {
	events      map[string]string
	verbs       map[string]string
	objectTypes map[string]string
	targets     map[string]string
	catalog     map[string]VerbEntry
}

// VerbEntry is a verb-catalog row: stable identifier plus both tenses.
type VerbEntry struct {
	ID         int
	Infinitive string
	PastTense  string
}

// Default returns the production catalog.
func Default() *Catalog {
	c := &Catalog{
		events: map[string]string{
			ActionShare:                   EventShared,
			ActionReshare:                 EventReshared,
			ActionRevoke:                  EventRevoked,
			ActionSelfRevoke:              EventRecipientDelete,
			ActionEditSharing:             EventEditedSharing,
			ActionAccessExpired:           EventRecipientExpired,
			ActionPushUpdate:              EventPushedUpdate,
			ActionView:                    EventViewed,
			ActionPrint:                   EventPrinted,
			ActionChangeRecipients:        EventChangedRecipients,
			ActionChangeName:              EventChangedName,
			ActionChangePassword:          ActionChangePassword,
			ActionChangeServicePreference: EventServicePrefsChanged,
			ActionEmailVerified:           ActionEmailVerified,
			ActionEmailRemoved:            ActionEmailRemoved,
			ActionPrimaryEmailChanged:     ActionPrimaryEmailChanged,
			ActionChangeTeamInfo:          EventChangedTeamInfo,
			ActionUserJoinTeam:            EventUserJoinedTeam,
			ActionChangeUserRole:          EventChangedUserRole,
			ActionDeleteAccount:           EventAccountDeleted,
			ActionDelete:                  ActionDelete,
			ActionCreateDirectory:         ActionCreateDirectory,
			ActionDeleteDirectory:         ActionDeleteDirectory,
			ActionMove:                    ActionMove,
			ActionRename:                  ActionRename,
			ActionRenameFolder:            ActionRenameFolder,
			ActionDeleteFolder:            ActionDeleteFolder,
			ActionEditFile:                ActionEditFile,
			ActionReconvert:               EventReconverted,
			ActionRefuse:                  ActionRefuse,
		},
		catalog: map[string]VerbEntry{
			VerbShare:      {ID: 1, Infinitive: "share", PastTense: "shared"},
			VerbRevoke:     {ID: 2, Infinitive: "revoke", PastTense: "revoked"},
			VerbChange:     {ID: 3, Infinitive: "change", PastTense: "changed"},
			VerbDelete:     {ID: 4, Infinitive: "delete", PastTense: "deleted"},
			VerbView:       {ID: 5, Infinitive: "view", PastTense: "viewed"},
			VerbPrint:      {ID: 6, Infinitive: "print", PastTense: "printed"},
			VerbDistribute: {ID: 7, Infinitive: "distribute", PastTense: "distributed"},
			VerbMove:       {ID: 8, Infinitive: "move", PastTense: "moved"},
			VerbRename:     {ID: 9, Infinitive: "rename", PastTense: "renamed"},
			VerbCreate:     {ID: 10, Infinitive: "create", PastTense: "created"},
			VerbRevise:     {ID: 11, Infinitive: "revise", PastTense: "revised"},
			VerbReshare:    {ID: 12, Infinitive: "reshare", PastTense: "reshared"},
			VerbExpire:     {ID: 13, Infinitive: "expire", PastTense: "expired"},
			VerbReconvert:  {ID: 14, Infinitive: "reconvert", PastTense: "reconverted"},
			VerbRefuse:     {ID: 15, Infinitive: "refuse", PastTense: "refused"},
		},
	}
	c.verbs = normalize(map[string][]string{
		VerbExpire: {EventDownstreamExpired, EventRecipientExpired, ActionAccessExpired},
		VerbChange: {
			EventChangedName, ActionChangeName, ActionChangeServicePreference,
			ActionChangePassword, EventChangedSender, "ChangeSender",
			ActionEmailRemoved, ActionEmailVerified, ActionPrimaryEmailChanged,
			ActionEditFile, ActionChangeTeamInfo, ActionUserJoinTeam,
			ActionChangeRecipients, ActionChangeUserRole,
		},
		VerbCreate: {ActionCreateDirectory},
		VerbDelete: {
			ActionDelete, ActionDeleteDirectory, ActionDeleteFolder,
			ActionSelfRevoke, ActionDeleteAccount, EventAccountDeleted,
		},
		VerbRevise:     {ActionEditSharing, EventEditedSharing},
		VerbMove:       {ActionMove, "ChangeDirectory", ActionRenameFolder},
		VerbPrint:      {ActionPrint, EventPrinted},
		VerbDistribute: {ActionPushUpdate, EventPushedUpdate},
		VerbReconvert:  {EventReconverted, ActionReconvert},
		VerbRename:     {ActionRename},
		VerbReshare:    {ActionReshare, EventReshared},
		VerbRevoke:     {EventRevoked, EventDownstreamRevoked, ActionRevoke, EventRecipientDelete},
		VerbShare:      {EventShared, ActionShare},
		VerbView:       {EventDownstreamViewed, ActionView, EventViewed},
		VerbRefuse:     {ActionRefuse},
	})
	c.objectTypes = normalize(map[string][]string{
		ObjectProfile: {
			EventChangedName, ActionChangeName, ActionChangeServicePreference,
			ActionChangePassword, ActionEmailRemoved, ActionEmailVerified,
			ActionPrimaryEmailChanged,
		},
		ObjectTeam:       {ActionChangeTeamInfo},
		ObjectMembership: {ActionUserJoinTeam, ActionChangeUserRole},
		ObjectAccount:    {ActionDeleteAccount, EventAccountDeleted},
	})
	c.targets = normalize(map[string][]string{
		"info":      {EventChangedName, ActionChangeName},
		"setting":   {ActionChangeServicePreference},
		"email":     {ActionEmailRemoved, ActionEmailVerified, ActionPrimaryEmailChanged},
		"recipient": {ActionChangeRecipients},
	})
	return c
}

// EventName translates a raw action into the event verb stored on the
// recipient's notification row. The mapping is total over every
// fan-out-eligible action: a miss is a programming error surfaced to the
// fan-out caller, never a silently written raw verb.
func (c *Catalog) EventName(action string) (string, bool) {
	event, ok := c.events[action]
	return event, ok
}

// CanonicalVerb normalizes a stored event verb (case insensitive) into its
// canonical verb key.
func (c *Catalog) CanonicalVerb(event string) (string, bool) {
	verb, ok := c.verbs[strings.ToLower(event)]
	return verb, ok
}

// ObjectType classifies the object a stored event verb refers to. The second
// return is false when the event defaults to a file object.
func (c *Catalog) ObjectType(event string) (string, bool) {
	objectType, ok := c.objectTypes[strings.ToLower(event)]
	return objectType, ok
}

// ObjectTarget returns the sub-target label decorating the object for
// name-change style events.
func (c *Catalog) ObjectTarget(event string) (string, bool) {
	target, ok := c.targets[strings.ToLower(event)]
	return target, ok
}

// Verb resolves a canonical verb key into its catalog entry.
func (c *Catalog) Verb(canonical string) (VerbEntry, bool) {
	entry, ok := c.catalog[canonical]
	return entry, ok
}

func normalize(groups map[string][]string) map[string]string {
	out := make(map[string]string)
	for value, keys := range groups {
		for _, key := range keys {
			out[strings.ToLower(key)] = value
		}
	}
	return out
}
