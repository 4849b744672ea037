package alerts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/salonpanel/salonpanel/services/notification-service/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	settings   model.SMSSettings
	contact    model.Contact
	deliveries []model.Delivery
}

func (m *memStore) Settings(context.Context, string) (model.SMSSettings, error) { return m.settings, nil }

func (m *memStore) Contact(context.Context, string, string) (model.Contact, error) {
	return m.contact, nil
}

func (m *memStore) RecordDelivery(_ context.Context, d model.Delivery) error {
	m.deliveries = append(m.deliveries, d)
	return nil
}

type fakeSender struct {
	to, body string
	err      error
}

func (f *fakeSender) Send(_ context.Context, to, body string) (string, error) {
	f.to, f.body = to, body
	return "id-1", f.err
}

func (f *fakeSender) ProviderID() string { return "fake" }

const payload = `{"group_id":"g1","business_id":"biz","customer_id":"c1","appointment_ids":["a1","a2"],
	"date":"2026-03-16","start_time":"14:00","end_time":"14:50","total_price_cents":13050,
	"services":[{"id":"s1","name":"Saç Kesimi"},{"id":"s2","name":"Sakal"}]}`

func newAlerter(store *memStore, sender *fakeSender) *Alerter {
	return NewAlerter(store, sender, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleSendsBusinessAlert(t *testing.T) {
	store := &memStore{
		settings: model.SMSSettings{IsEnabled: true, BusinessNotificationEnabled: true},
		contact:  model.Contact{BusinessName: "Salon", BusinessPhone: "+905550000000", CustomerName: "Ayşe"},
	}
	sender := &fakeSender{}
	require.NoError(t, newAlerter(store, sender).Handle(context.Background(), kafka.Message{Value: []byte(payload)}))

	assert.Equal(t, "+905550000000", sender.to)
	assert.Equal(t, "Yeni randevu: Ayse, 16.03.2026 14:00-14:50. Hizmetler: Sac Kesimi, Sakal. Tutar: 130,50 TL", sender.body)
	require.Len(t, store.deliveries, 1)
	assert.Equal(t, model.KindBusinessAlert, store.deliveries[0].Kind)
	assert.Equal(t, "a1", store.deliveries[0].AppointmentID)
}

func TestHandleRespectsSettingsAndPhone(t *testing.T) {
	sender := &fakeSender{}
	off := &memStore{settings: model.SMSSettings{IsEnabled: true}, contact: model.Contact{BusinessPhone: "+90"}}
	require.NoError(t, newAlerter(off, sender).Handle(context.Background(), kafka.Message{Value: []byte(payload)}))
	assert.Empty(t, sender.to)

	noPhone := &memStore{settings: model.SMSSettings{IsEnabled: true, BusinessNotificationEnabled: true}}
	require.NoError(t, newAlerter(noPhone, sender).Handle(context.Background(), kafka.Message{Value: []byte(payload)}))
	assert.Empty(t, sender.to)
	assert.Empty(t, noPhone.deliveries)
}

func TestHandleDropsMalformed(t *testing.T) {
	sender := &fakeSender{}
	a := newAlerter(&memStore{settings: model.SMSSettings{IsEnabled: true, BusinessNotificationEnabled: true}}, sender)
	assert.NoError(t, a.Handle(context.Background(), kafka.Message{Value: []byte(`{`)}))
	assert.NoError(t, a.Handle(context.Background(), kafka.Message{Value: []byte(`{"group_id":"g"}`)}))
	assert.NoError(t, a.Handle(context.Background(), kafka.Message{Value: []byte(`{"group_id":"g","business_id":"b","date":"16.03.2026","start_time":"10:00"}`)}))
	assert.Empty(t, sender.to)
}

func TestNotifyRecordsFailedSend(t *testing.T) {
	store := &memStore{
		settings: model.SMSSettings{IsEnabled: true, BusinessNotificationEnabled: true},
		contact:  model.Contact{BusinessPhone: "+905550000000"},
	}
	sender := &fakeSender{err: errors.New("nope")}
	err := newAlerter(store, sender).Notify(context.Background(), BookedEvent{BusinessID: "biz", GroupID: "g"}, time.Now())
	require.NoError(t, err)
	require.Len(t, store.deliveries, 1)
	assert.Equal(t, model.DeliveryFailed, store.deliveries[0].Status)
	assert.Contains(t, sender.body, "Musteri")
}
