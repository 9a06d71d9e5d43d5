package domain

type Role string

const (
	RoleClient Role = "client"
	RoleExpert Role = "expert"
)

func (r Role) Valid() bool { return r == RoleClient || r == RoleExpert }

// Other returns the counterpart role of a one-to-one consultation.
func (r Role) Other() Role {
	if r == RoleExpert {
		return RoleClient
	}
	return RoleExpert
}

// Permissions reports whether the OS granted capture access.
type Permissions struct {
	Camera     bool `json:"camera"`
	Microphone bool `json:"microphone"`
}

// DeviceStatus is availability, not activation.
type DeviceStatus struct {
	Camera      bool        `json:"camera"`
	Microphone  bool        `json:"microphone"`
	Speaker     bool        `json:"speaker"`
	Permissions Permissions `json:"permissions"`
}

type QualityBucket string

const (
	QualityExcellent QualityBucket = "excellent"
	QualityGood      QualityBucket = "good"
	QualityFair      QualityBucket = "fair"
	QualityPoor      QualityBucket = "poor"
)

// RTTUnmeasured marks a failed or missing round-trip measurement.
const RTTUnmeasured = -1

// BucketForRTT maps a round-trip time in milliseconds to a quality bucket.
func BucketForRTT(rttMs int) QualityBucket {
	switch {
	case rttMs < 0:
		return QualityPoor
	case rttMs < 50:
		return QualityExcellent
	case rttMs < 150:
		return QualityGood
	case rttMs < 300:
		return QualityFair
	default:
		return QualityPoor
	}
}

type NetworkQuality struct {
	RTTMs              int           `json:"rtt_ms"`
	BandwidthKbps      int           `json:"bandwidth_kbps"`
	Bucket             QualityBucket `json:"quality_bucket"`
	LastUpdatedEpochMs int64         `json:"last_updated_epoch_ms"`
}

type Participant struct {
	UserID          UserID          `json:"user_id"`
	Role            Role            `json:"role"`
	DisplayName     string          `json:"display_name"`
	AvatarRef       string          `json:"avatar_ref,omitempty"`
	Ready           bool            `json:"ready"`
	Online          bool            `json:"online"`
	Device          DeviceStatus    `json:"device_status"`
	Network         *NetworkQuality `json:"network_quality,omitempty"`
	JoinedAtEpochMs *int64          `json:"joined_at_epoch_ms,omitempty"`
}

func (p *Participant) clone() *Participant {
	if p == nil {
		return nil
	}
	out := *p
	if p.Network != nil {
		n := *p.Network
		out.Network = &n
	}
	if p.JoinedAtEpochMs != nil {
		j := *p.JoinedAtEpochMs
		out.JoinedAtEpochMs = &j
	}
	return &out
}
