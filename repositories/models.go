package repositories

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-scopecache/repositorycache"
)

// Language is an installed content language.
type Language struct {
	bun.BaseModel            `bun:"table:languages" msgpack:"-" json:"-"`
	repositorycache.Tracking `bun:"-" msgpack:"-" json:"-"`

	ID                 int    `bun:"id,pk,autoincrement" msgpack:"id" json:"id"`
	IsoCode            string `bun:"iso_code,notnull,unique" msgpack:"iso" json:"iso_code"`
	CultureName        string `bun:"culture_name" msgpack:"culture" json:"culture_name"`
	IsDefault          bool   `bun:"is_default,notnull" msgpack:"default" json:"is_default"`
	IsMandatory        bool   `bun:"is_mandatory,notnull" msgpack:"mandatory" json:"is_mandatory"`
	FallbackLanguageID *int   `bun:"fallback_language_id" msgpack:"fallback" json:"fallback_language_id,omitempty"`
}

func (l *Language) HasIdentity() bool { return l.ID != 0 }

func languageID(l *Language) int { return l.ID }

// Domain binds a host name to a content root. Wildcard domains start with
// "*" and only carry a language.
type Domain struct {
	bun.BaseModel            `bun:"table:domains" msgpack:"-" json:"-"`
	repositorycache.Tracking `bun:"-" msgpack:"-" json:"-"`

	ID            int    `bun:"id,pk,autoincrement" msgpack:"id" json:"id"`
	DomainName    string `bun:"domain_name,notnull" msgpack:"name" json:"domain_name"`
	RootContentID *int   `bun:"root_content_id" msgpack:"root" json:"root_content_id,omitempty"`
	LanguageID    *int   `bun:"language_id" msgpack:"lang" json:"language_id,omitempty"`
	SortOrder     int    `bun:"sort_order,notnull" msgpack:"sort" json:"sort_order"`
}

func (d *Domain) HasIdentity() bool { return d.ID != 0 }

// IsWildcard reports whether the domain only assigns a language.
func (d *Domain) IsWildcard() bool {
	return len(d.DomainName) > 0 && d.DomainName[0] == '*'
}

func domainID(d *Domain) int { return d.ID }

// RelationType describes a kind of relation between two entities.
type RelationType struct {
	bun.BaseModel            `bun:"table:relation_types" msgpack:"-" json:"-"`
	repositorycache.Tracking `bun:"-" msgpack:"-" json:"-"`

	ID              int       `bun:"id,pk,autoincrement" msgpack:"id" json:"id"`
	Key             uuid.UUID `bun:"uid,type:varchar(36),notnull,unique" msgpack:"key" json:"key"`
	Alias           string    `bun:"alias,notnull,unique" msgpack:"alias" json:"alias"`
	Name            string    `bun:"name,notnull" msgpack:"name" json:"name"`
	IsBidirectional bool      `bun:"is_bidirectional,notnull" msgpack:"bidi" json:"is_bidirectional"`
	IsDependency    bool      `bun:"is_dependency,notnull" msgpack:"dep" json:"is_dependency"`
}

func (r *RelationType) HasIdentity() bool { return r.ID != 0 }

func relationTypeID(r *RelationType) int { return r.ID }

// DictionaryItem is a translatable label. Items form a tree through
// ParentKey.
type DictionaryItem struct {
	bun.BaseModel            `bun:"table:dictionary_items" msgpack:"-" json:"-"`
	repositorycache.Tracking `bun:"-" msgpack:"-" json:"-"`

	ID        int        `bun:"id,pk,autoincrement" msgpack:"id" json:"id"`
	Key       uuid.UUID  `bun:"uid,type:varchar(36),notnull,unique" msgpack:"key" json:"key"`
	ItemKey   string     `bun:"item_key,notnull,unique" msgpack:"item" json:"item_key"`
	ParentKey *uuid.UUID `bun:"parent_uid,type:varchar(36)" msgpack:"parent" json:"parent_key,omitempty"`
}

func (d *DictionaryItem) HasIdentity() bool { return d.ID != 0 }

func dictionaryItemID(d *DictionaryItem) int { return d.ID }

// ServerRegistration records a server taking part in a load balanced
// setup. It changes on every heartbeat, so it is never cached.
type ServerRegistration struct {
	bun.BaseModel            `bun:"table:server_registrations" msgpack:"-" json:"-"`
	repositorycache.Tracking `bun:"-" msgpack:"-" json:"-"`

	ID                    int       `bun:"id,pk,autoincrement" msgpack:"id" json:"id"`
	ServerAddress         string    `bun:"server_address,notnull" msgpack:"addr" json:"server_address"`
	ServerIdentity        string    `bun:"server_identity,notnull,unique" msgpack:"identity" json:"server_identity"`
	Registered            time.Time `bun:"registered,notnull" msgpack:"registered" json:"registered"`
	Accessed              time.Time `bun:"accessed,notnull" msgpack:"accessed" json:"accessed"`
	IsActive              bool      `bun:"is_active,notnull" msgpack:"active" json:"is_active"`
	IsSchedulingPublisher bool      `bun:"is_scheduling_publisher,notnull" msgpack:"publisher" json:"is_scheduling_publisher"`
}

func (s *ServerRegistration) HasIdentity() bool { return s.ID != 0 }

func serverRegistrationID(s *ServerRegistration) int { return s.ID }
