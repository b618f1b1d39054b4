package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/kitchen_admin/config"
	"github.com/mmdatafocus/kitchen_admin/edo"
	"github.com/mmdatafocus/kitchen_admin/models"
)

func TestOutboxDispatcher_PublishesAndRetries_MySQL(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	name := fmt.Sprintf("kitchen-dispatch-mysql-%d", time.Now().UnixNano())
	if out, err := exec.Command("docker", "run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=kitchen_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	).CombinedOutput(); err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	t.Cleanup(func() { _ = exec.Command("docker", "rm", "-f", name).Run() })

	out, err := exec.Command("docker", "port", name, "3306/tcp").CombinedOutput()
	if err != nil {
		t.Fatalf("docker port: %v\n%s", err, out)
	}
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(string(out))
	if len(m) != 2 {
		t.Fatalf("unexpected docker port output: %q", out)
	}

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", m[1])
	t.Setenv("DB_NAME", "kitchen_test")
	t.Setenv("DB_MAX_CONNECT_ATTEMPTS", "30")

	if err := config.ConnectDatabaseWithRetry(); err != nil {
		t.Fatalf("connect database: %v", err)
	}
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db := config.GetDB()

	sink := models.NewGormEventSink(db)
	for _, ev := range []edo.Event{
		{ID: "ev-ok", DocflowId: "doc-1", Type: edo.EventSigned, Status: edo.StatusSigned},
		{ID: "ev-bad", DocflowId: "doc-2", Type: edo.EventSent, Status: edo.StatusSent},
	} {
		if err := sink.Emit(ctx, ev); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	var published []string
	d := NewOutboxDispatcher(db, config.GetLogger())
	d.Publish = func(ctx context.Context, msg config.EdoEventMessage) (string, error) {
		if msg.DocflowId == "doc-2" {
			return "", errors.New("topic unavailable")
		}
		published = append(published, msg.DocflowId)
		return "msg-1", nil
	}
	d.dispatchOnce(ctx)

	if len(published) != 1 || published[0] != "doc-1" {
		t.Fatalf("expected doc-1 published once, got %v", published)
	}

	ok, err := models.ListEdoEvents(ctx, "doc-1")
	if err != nil || len(ok) != 1 {
		t.Fatalf("list doc-1: %v (%d rows)", err, len(ok))
	}
	if ok[0].PublishStatus != models.OutboxPublishStatusSent || ok[0].PubSubMessageId == nil || *ok[0].PubSubMessageId != "msg-1" {
		t.Fatalf("expected SENT with message id, got %+v", ok[0])
	}

	bad, err := models.ListEdoEvents(ctx, "doc-2")
	if err != nil || len(bad) != 1 {
		t.Fatalf("list doc-2: %v (%d rows)", err, len(bad))
	}
	if bad[0].PublishStatus != models.OutboxPublishStatusFailed || bad[0].PublishAttempts != 1 || bad[0].NextAttemptAt == nil {
		t.Fatalf("expected FAILED with backoff, got %+v", bad[0])
	}

	// Not due yet: a second pass publishes nothing.
	published = nil
	d.dispatchOnce(ctx)
	if len(published) != 0 {
		t.Fatalf("expected no publish before backoff elapses, got %v", published)
	}
}
