package ojt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ojtportal/internal/database"
)

type fakeStore struct {
	objects map[string][]byte
	deleted []string
	fetched []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) error {
	b, _ := io.ReadAll(reader)
	s.objects[objectName] = b
	return nil
}

func (s *fakeStore) GetObject(_ context.Context, objectKey string) (io.ReadCloser, error) {
	s.fetched = append(s.fetched, objectKey)
	b, ok := s.objects[objectKey]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *fakeStore) ObjectExists(_ context.Context, objectKey string) (bool, error) {
	_, ok := s.objects[objectKey]
	return ok, nil
}

func (s *fakeStore) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	delete(s.objects, objectKey)
	return nil
}

func (s *fakeStore) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + objectKey, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, studentID, email string) database.User {
	t.Helper()
	sid := studentID
	user := database.User{
		Name:       "Student " + studentID,
		Email:      email,
		Role:       database.RoleStudent,
		StudentID:  &sid,
		OJTProgram: "BSIT",
		Status:     database.UserStatusActive,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return user
}

func upload(name string) *FileUpload {
	return &FileUpload{
		Reader:      bytes.NewReader([]byte("content of " + name)),
		Size:        int64(len("content of " + name)),
		ContentType: "application/pdf",
		Filename:    name,
	}
}

func dateAt(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestSubmitCreatesPendingApplication(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := newFakeStore()
	svc := NewApplicationService(db, store)

	student := seedStudent(t, db, "2021-0001", "s1@example.com")
	caller := Caller{ID: student.ID, Role: database.RoleStudent}

	app, err := svc.Submit(ctx, caller, SubmitInput{
		Resume:    upload("resume.pdf"),
		Letter:    upload("letter.pdf"),
		StartDate: dateAt(2024, time.June, 1),
		EndDate:   dateAt(2024, time.August, 31),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if app.Status != database.ApplicationPending {
		t.Fatalf("expected Pending got %q", app.Status)
	}
	if app.RequiredHours != 0 {
		t.Fatalf("expected requiredHours 0 got %d", app.RequiredHours)
	}
	if app.ResumePath == "" || app.LetterPath == "" {
		t.Fatalf("expected stored document keys, got %q / %q", app.ResumePath, app.LetterPath)
	}
	if _, ok := store.objects[app.ResumePath]; !ok {
		t.Fatalf("resume object %q not stored", app.ResumePath)
	}
	if _, ok := store.objects[app.LetterPath]; !ok {
		t.Fatalf("letter object %q not stored", app.LetterPath)
	}
}

func TestSubmitRejectsBackwardDateRange(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := newFakeStore()
	svc := NewApplicationService(db, store)

	student := seedStudent(t, db, "2021-0002", "s2@example.com")
	caller := Caller{ID: student.ID, Role: database.RoleStudent}

	_, err := svc.Submit(ctx, caller, SubmitInput{
		Resume:    upload("resume.pdf"),
		Letter:    upload("letter.pdf"),
		StartDate: dateAt(2024, time.August, 31),
		EndDate:   dateAt(2024, time.June, 1),
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error got %v", err)
	}
	if _, ok := verr.Fields["endDate"]; !ok {
		t.Fatalf("expected endDate field error, got %v", verr.Fields)
	}

	var count int64
	if err := db.Model(&database.Application{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no application rows, got %d", count)
	}
	if len(store.objects) != 0 {
		t.Fatalf("expected no stored objects, got %d", len(store.objects))
	}
}

func TestReviewApprovedRequiresHours(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := newFakeStore()
	svc := NewApplicationService(db, store)

	student := seedStudent(t, db, "2021-0003", "s3@example.com")
	app, err := svc.Submit(ctx, Caller{ID: student.ID, Role: database.RoleStudent}, SubmitInput{
		Resume:    upload("resume.pdf"),
		Letter:    upload("letter.pdf"),
		StartDate: dateAt(2024, time.June, 1),
		EndDate:   dateAt(2024, time.August, 31),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	admin := Caller{ID: 99, Role: database.RoleAdmin}

	_, err = svc.Review(ctx, admin, app.ID, ReviewInput{Status: database.ApplicationApproved})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error got %v", err)
	}
	if _, ok := verr.Fields["requiredHours"]; !ok {
		t.Fatalf("expected requiredHours field error, got %v", verr.Fields)
	}

	var stored database.Application
	if err := db.First(&stored, app.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != database.ApplicationPending {
		t.Fatalf("status changed on failed review: %q", stored.Status)
	}

	hours := 500
	reviewed, err := svc.Review(ctx, admin, app.ID, ReviewInput{
		Status:        database.ApplicationApproved,
		RequiredHours: &hours,
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != database.ApplicationApproved || reviewed.RequiredHours != 500 {
		t.Fatalf("expected Approved/500 got %q/%d", reviewed.Status, reviewed.RequiredHours)
	}
}

func TestReviewNonApprovedForcesHoursToZero(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := newFakeStore()
	svc := NewApplicationService(db, store)

	student := seedStudent(t, db, "2021-0004", "s4@example.com")
	app, err := svc.Submit(ctx, Caller{ID: student.ID, Role: database.RoleStudent}, SubmitInput{
		Resume:    upload("resume.pdf"),
		Letter:    upload("letter.pdf"),
		StartDate: dateAt(2024, time.June, 1),
		EndDate:   dateAt(2024, time.August, 31),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	hours := 300
	reviewed, err := svc.Review(ctx, Caller{ID: 99, Role: database.RoleAdmin}, app.ID, ReviewInput{
		Status:        database.ApplicationRejected,
		RequiredHours: &hours,
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.RequiredHours != 0 {
		t.Fatalf("expected requiredHours forced to 0, got %d", reviewed.RequiredHours)
	}
}

func TestUpdateByAnotherStudentDenied(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := newFakeStore()
	svc := NewApplicationService(db, store)

	owner := seedStudent(t, db, "2021-0005", "s5@example.com")
	other := seedStudent(t, db, "2021-0006", "s6@example.com")

	app, err := svc.Submit(ctx, Caller{ID: owner.ID, Role: database.RoleStudent}, SubmitInput{
		Resume:    upload("resume.pdf"),
		Letter:    upload("letter.pdf"),
		StartDate: dateAt(2024, time.June, 1),
		EndDate:   dateAt(2024, time.August, 31),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	intruder := Caller{ID: other.ID, Role: database.RoleStudent}

	_, err = svc.Update(ctx, intruder, app.ID, UpdateInput{
		StartDate: dateAt(2024, time.June, 1),
		EndDate:   dateAt(2024, time.August, 31),
	})
	var authz *AuthorizationError
	if !errors.As(err, &authz) {
		t.Fatalf("expected authorization error got %v", err)
	}

	if err := svc.Delete(ctx, intruder, app.ID); !errors.As(err, &authz) {
		t.Fatalf("expected authorization error got %v", err)
	}
}

func TestUpdateReplacesStoredResume(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := newFakeStore()
	svc := NewApplicationService(db, store)

	student := seedStudent(t, db, "2021-0010", "s10@example.com")
	caller := Caller{ID: student.ID, Role: database.RoleStudent}

	app, err := svc.Submit(ctx, caller, SubmitInput{
		Resume:           upload("resume.pdf"),
		Letter:           upload("letter.pdf"),
		StartDate:        dateAt(2024, time.June, 1),
		EndDate:          dateAt(2024, time.August, 31),
		PreferredCompany: "Acme Corp",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	oldResume := app.ResumePath
	oldLetter := app.LetterPath

	updated, err := svc.Update(ctx, caller, app.ID, UpdateInput{
		Resume:           upload("resume-v2.pdf"),
		StartDate:        dateAt(2024, time.July, 1),
		EndDate:          dateAt(2024, time.September, 30),
		PreferredCompany: "Globex",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.ResumePath == "" || updated.ResumePath == oldResume {
		t.Fatalf("expected a new resume key, got %q (old %q)", updated.ResumePath, oldResume)
	}
	if exists, _ := store.ObjectExists(ctx, oldResume); exists {
		t.Fatalf("old resume object %q still stored after replacement", oldResume)
	}
	if exists, _ := store.ObjectExists(ctx, updated.ResumePath); !exists {
		t.Fatalf("new resume object %q not stored", updated.ResumePath)
	}

	if updated.LetterPath != oldLetter {
		t.Fatalf("letter key changed without a replacement: %q -> %q", oldLetter, updated.LetterPath)
	}
	if exists, _ := store.ObjectExists(ctx, oldLetter); !exists {
		t.Fatalf("letter object %q lost during update", oldLetter)
	}

	if updated.PreferredCompany != "Globex" {
		t.Fatalf("expected preferred company Globex, got %q", updated.PreferredCompany)
	}
	if updated.StartDate == nil || !updated.StartDate.Equal(dateAt(2024, time.July, 1)) {
		t.Fatalf("start date not persisted: %v", updated.StartDate)
	}
	if updated.EndDate == nil || !updated.EndDate.Equal(dateAt(2024, time.September, 30)) {
		t.Fatalf("end date not persisted: %v", updated.EndDate)
	}
}

func TestDocumentLinkPresignsWithoutFetching(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := newFakeStore()
	svc := NewApplicationService(db, store)

	student := seedStudent(t, db, "2021-0011", "s11@example.com")
	caller := Caller{ID: student.ID, Role: database.RoleStudent}

	app, err := svc.Submit(ctx, caller, SubmitInput{
		Resume:    upload("resume.pdf"),
		Letter:    upload("letter.pdf"),
		StartDate: dateAt(2024, time.June, 1),
		EndDate:   dateAt(2024, time.August, 31),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	url, err := svc.DocumentLink(ctx, caller, app.ID, DocumentResume, time.Minute)
	if err != nil {
		t.Fatalf("document link: %v", err)
	}
	if url != "https://example.invalid/"+app.ResumePath {
		t.Fatalf("unexpected presigned url %q", url)
	}
	if len(store.fetched) != 0 {
		t.Fatalf("presigning fetched objects: %v", store.fetched)
	}

	delete(store.objects, app.LetterPath)
	_, err = svc.DocumentLink(ctx, caller, app.ID, DocumentLetter, time.Minute)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not-found error for dangling reference, got %v", err)
	}
}

func TestDeleteReleasesStoredDocuments(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := newFakeStore()
	svc := NewApplicationService(db, store)

	student := seedStudent(t, db, "2021-0007", "s7@example.com")
	caller := Caller{ID: student.ID, Role: database.RoleStudent}

	app, err := svc.Submit(ctx, caller, SubmitInput{
		Resume:         upload("resume.pdf"),
		Letter:         upload("letter.pdf"),
		OtherDocuments: []FileUpload{*upload("waiver.pdf")},
		StartDate:      dateAt(2024, time.June, 1),
		EndDate:        dateAt(2024, time.August, 31),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	keys := app.DocumentKeys()
	if len(keys) != 3 {
		t.Fatalf("expected 3 document keys, got %d", len(keys))
	}

	if err := svc.Delete(ctx, caller, app.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, key := range keys {
		exists, _ := store.ObjectExists(ctx, key)
		if exists {
			t.Fatalf("object %q still stored after delete", key)
		}
	}
	var count int64
	if err := db.Model(&database.Application{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected application row removed, got %d", count)
	}
}

func TestCurrentPrefersNewestApplication(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewApplicationService(db, newFakeStore())

	student := seedStudent(t, db, "2021-0008", "s8@example.com")

	older := database.Application{
		UserID:          student.ID,
		Status:          database.ApplicationRejected,
		ApplicationDate: dateAt(2024, time.January, 5),
	}
	newer := database.Application{
		UserID:          student.ID,
		Status:          database.ApplicationPending,
		ApplicationDate: dateAt(2024, time.March, 5),
	}
	if err := db.Create(&older).Error; err != nil {
		t.Fatalf("seed older: %v", err)
	}
	if err := db.Create(&newer).Error; err != nil {
		t.Fatalf("seed newer: %v", err)
	}

	current, err := svc.Current(ctx, student.ID)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current == nil || current.ID != newer.ID {
		t.Fatalf("expected application %d, got %+v", newer.ID, current)
	}
}

func TestCurrentReturnsNilWithoutApplications(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewApplicationService(db, newFakeStore())

	student := seedStudent(t, db, "2021-0009", "s9@example.com")

	current, err := svc.Current(ctx, student.ID)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current != nil {
		t.Fatalf("expected nil, got %+v", current)
	}
}
