package database

import "time"

// Store kinds supported by the metadata probers.
const (
	StoreKindSSH     = "ssh"
	StoreKindAliyun  = "aliyun"
	StoreKindTencent = "tencent"
	StoreKindQiniu   = "qiniu"
)

// Store describes one storage node holding physical file copies.
//
// Every instance path is relative to PathPrefix. For ssh stores the
// librarian reaches the node through SSHHost/SSHUser to probe file
// metadata; for the object-storage kinds it uses the bucket credentials
// instead and SSHHost is informational only. HTTPPrefix, when set, is a
// public URL prefix under which instances can be fetched directly.
type Store struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string `gorm:"uniqueIndex;not null;size:256" json:"name"`
	Kind       string `gorm:"not null;size:20;default:ssh" json:"kind"`
	PathPrefix string `gorm:"not null;size:256" json:"path_prefix"`
	SSHHost    string `gorm:"size:256" json:"ssh_host"`
	SSHUser    string `gorm:"size:64" json:"ssh_user,omitempty"`
	SSHKeyFile string `gorm:"size:256" json:"ssh_key_file,omitempty"`
	HTTPPrefix string `gorm:"size:256" json:"http_prefix,omitempty"`
	Available  bool   `gorm:"default:true" json:"available"`

	// Object-storage credentials, used by the aliyun/tencent/qiniu
	// probers. SecretKey is never returned in API responses.
	Region    string `gorm:"size:50" json:"region,omitempty"`
	Bucket    string `gorm:"size:100" json:"bucket,omitempty"`
	AccessKey string `gorm:"size:100" json:"access_key,omitempty"`
	SecretKey string `gorm:"size:200" json:"-"`
	Endpoint  string `gorm:"size:200" json:"endpoint,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName gives the Store table name.
func (Store) TableName() string {
	return "store"
}
