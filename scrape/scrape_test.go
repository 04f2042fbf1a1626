package scrape

import "testing"

const sampleCard = `
<li class="reusable-search__result-container">
  <div class="entity-result__title-text">
    <a href="https://www.linkedin.com/in/jane-doe?miniProfile=abc">
      <span aria-hidden="true">Jane Doe</span>
      <span class="visually-hidden">View Jane Doe's profile</span>
    </a>
  </div>
  <div class="entity-result__primary-subtitle">Software Engineer Intern</div>
  <div class="entity-result__secondary-subtitle">Acme Corp</div>
  <button aria-label="Invite Jane Doe to connect">Connect</button>
</li>`

func TestParseCard(t *testing.T) {
	c, ok := ParseCard(0, sampleCard)
	if !ok {
		t.Fatal("expected candidate")
	}
	if c.Name != "Jane Doe" {
		t.Fatalf("name = %q", c.Name)
	}
	if c.FirstName() != "Jane" {
		t.Fatalf("first name = %q", c.FirstName())
	}
	if c.Headline != "Software Engineer Intern" {
		t.Fatalf("headline = %q", c.Headline)
	}
	if c.Company != "Acme Corp" {
		t.Fatalf("company = %q", c.Company)
	}
	if c.ProfileURL != "https://www.linkedin.com/in/jane-doe?miniProfile=abc" {
		t.Fatalf("profile url = %q", c.ProfileURL)
	}
	if !c.HasConnectAction {
		t.Fatal("expected connect action")
	}
	if c.AlreadyConnected || c.PendingInvite {
		t.Fatalf("unexpected flags: %+v", c)
	}
}

func TestParseCardNoName(t *testing.T) {
	if _, ok := ParseCard(0, `<li><div class="promo">Upgrade to Premium</div></li>`); ok {
		t.Fatal("expected no candidate from a promo card")
	}
}

func TestParseCardAlreadyConnected(t *testing.T) {
	card := `
<li>
  <div class="entity-result__title-text">
    <a href="/in/bob"><span aria-hidden="true">Bob Roe</span></a>
  </div>
  <span class="entity-result__badge-text">• 1st</span>
</li>`
	c, ok := ParseCard(1, card)
	if !ok {
		t.Fatal("expected candidate")
	}
	if !c.AlreadyConnected {
		t.Fatal("expected already-connected flag")
	}
	if c.HasConnectAction {
		t.Fatal("no connect button in card")
	}
}

func TestParseCardPending(t *testing.T) {
	card := `
<li>
  <div class="entity-result__title-text">
    <a href="/in/carol"><span aria-hidden="true">Carol Day</span></a>
  </div>
  <button class="invitation-card__action-btn--pending">Pending</button>
</li>`
	c, ok := ParseCard(2, card)
	if !ok {
		t.Fatal("expected candidate")
	}
	if !c.PendingInvite {
		t.Fatal("expected pending flag")
	}
}

func TestCleanTextStripsMarkup(t *testing.T) {
	got := CleanText(`  Jane <img src=x onerror=alert(1)> <b>Doe</b>
	&amp; co `)
	if got != "Jane Doe & co" {
		t.Fatalf("got %q", got)
	}
}
