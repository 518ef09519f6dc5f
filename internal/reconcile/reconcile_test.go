package reconcile

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmsview/internal/domain"
)

func completed(id int64, ip string) domain.DiscoveryRecord {
	return domain.DiscoveryRecord{ID: id, IP: ip, Status: domain.DiscoveryStatusCompleted, DeviceType: domain.DeviceTypeLinux}
}

func object(id int64, ip string) domain.ManagedObject {
	return domain.ManagedObject{ID: id, IP: ip, PollIntervalMs: 2000, Status: domain.ProvisioningActive}
}

func ips(rows []domain.MergedViewRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.IP
	}
	return out
}

func TestReconcile(t *testing.T) {
	t.Run("single completed discovery", func(t *testing.T) {
		rows := Reconcile([]domain.DiscoveryRecord{completed(1, "10.0.0.5")}, nil)

		require.Len(t, rows, 1)
		assert.Equal(t, domain.RowKindDiscovery, rows[0].Kind)
		assert.Equal(t, "10.0.0.5", rows[0].IP)
		assert.Equal(t, domain.NotApplicable, rows[0].PollInterval)
	})

	t.Run("object supersedes discovery", func(t *testing.T) {
		rows := Reconcile(
			[]domain.DiscoveryRecord{completed(1, "10.0.0.5")},
			[]domain.ManagedObject{object(7, "10.0.0.5")},
		)

		require.Len(t, rows, 1)
		assert.Equal(t, domain.RowKindObject, rows[0].Kind)
		require.NotNil(t, rows[0].Object)
		assert.Equal(t, int64(7), rows[0].Object.ID)
	})

	t.Run("non-completed discoveries are excluded", func(t *testing.T) {
		discoveries := []domain.DiscoveryRecord{
			{ID: 1, IP: "10.0.0.1", Status: domain.DiscoveryStatusPending},
			{ID: 2, IP: "10.0.0.2", Status: domain.DiscoveryStatusRunning},
			{ID: 3, IP: "10.0.0.3", Status: domain.DiscoveryStatusFailed},
			completed(4, "10.0.0.4"),
		}

		rows := Reconcile(discoveries, nil)
		assert.Equal(t, []string{"10.0.0.4"}, ips(rows))
	})

	t.Run("discoveries precede objects in input order", func(t *testing.T) {
		rows := Reconcile(
			[]domain.DiscoveryRecord{completed(1, "10.0.0.9"), completed(2, "10.0.0.1")},
			[]domain.ManagedObject{object(5, "10.0.0.8"), object(6, "10.0.0.2")},
		)

		assert.Equal(t, []string{"10.0.0.9", "10.0.0.1", "10.0.0.8", "10.0.0.2"}, ips(rows))
		assert.Equal(t, domain.RowKindDiscovery, rows[1].Kind)
		assert.Equal(t, domain.RowKindObject, rows[2].Kind)
	})

	t.Run("empty inputs", func(t *testing.T) {
		rows := Reconcile(nil, nil)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})
}

func TestMergeDuplicates(t *testing.T) {
	t.Run("duplicate objects keep the last at the first position", func(t *testing.T) {
		res := Merge(nil, []domain.ManagedObject{
			object(1, "10.0.0.1"),
			object(2, "10.0.0.2"),
			object(3, "10.0.0.1"),
		})

		require.Len(t, res.Rows, 2)
		assert.Equal(t, int64(3), res.Rows[0].Object.ID)
		assert.Equal(t, int64(2), res.Rows[1].Object.ID)
		require.Len(t, res.Anomalies, 1)
		assert.Equal(t, Anomaly{Kind: AnomalyDuplicateObject, IP: "10.0.0.1", Kept: 3, Dropped: 1}, res.Anomalies[0])
	})

	t.Run("duplicate discoveries keep the first", func(t *testing.T) {
		res := Merge([]domain.DiscoveryRecord{completed(1, "10.0.0.1"), completed(2, "10.0.0.1")}, nil)

		require.Len(t, res.Rows, 1)
		assert.Equal(t, int64(1), res.Rows[0].Discovery.ID)
		require.Len(t, res.Anomalies, 1)
		assert.Equal(t, AnomalyDuplicateDiscovery, res.Anomalies[0].Kind)
	})

	t.Run("suppressed discoveries are not anomalies", func(t *testing.T) {
		res := Merge(
			[]domain.DiscoveryRecord{completed(1, "10.0.0.1")},
			[]domain.ManagedObject{object(2, "10.0.0.1")},
		)
		assert.Empty(t, res.Anomalies)
	})
}

func TestReconcileProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []domain.DiscoveryStatus{
		domain.DiscoveryStatusPending,
		domain.DiscoveryStatusRunning,
		domain.DiscoveryStatusCompleted,
		domain.DiscoveryStatusFailed,
	}

	for iter := 0; iter < 200; iter++ {
		var discoveries []domain.DiscoveryRecord
		nd := rng.Intn(12)
		for i := 0; i < nd; i++ {
			discoveries = append(discoveries, domain.DiscoveryRecord{
				ID:     int64(i + 1),
				IP:     fmt.Sprintf("10.0.0.%d", rng.Intn(6)),
				Status: statuses[rng.Intn(len(statuses))],
			})
		}
		var objects []domain.ManagedObject
		no := rng.Intn(8)
		for i := 0; i < no; i++ {
			objects = append(objects, object(int64(100+i), fmt.Sprintf("10.0.0.%d", rng.Intn(6))))
		}

		rows := Reconcile(discoveries, objects)

		seen := make(map[string]bool)
		objectIPs := make(map[string]bool)
		for _, o := range objects {
			objectIPs[o.IP] = true
		}
		for _, r := range rows {
			assert.False(t, seen[r.IP], "duplicate ip %s", r.IP)
			seen[r.IP] = true

			if objectIPs[r.IP] {
				assert.Equal(t, domain.RowKindObject, r.Kind, "ip %s should be an object row", r.IP)
			}
			if r.Kind == domain.RowKindDiscovery {
				assert.True(t, r.Discovery.IsCompleted())
			}
		}

		assert.Equal(t, rows, Reconcile(discoveries, objects))
	}
}

func TestReconcilerLogsAnomalies(t *testing.T) {
	var buf bytes.Buffer
	r := NewReconciler(zerolog.New(&buf))

	rows := r.Reconcile(nil, []domain.ManagedObject{object(1, "10.0.0.1"), object(2, "10.0.0.1")})

	require.Len(t, rows, 1)
	assert.Contains(t, buf.String(), `"anomaly":"duplicate_object"`)
	assert.Contains(t, buf.String(), `"ip":"10.0.0.1"`)
}
