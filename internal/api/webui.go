package api

const webUI = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Workshop Console</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#f5f5f5;color:#333;line-height:1.6}

/* Header */
.hdr{background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);color:#fff;padding:14px 20px;display:flex;align-items:center;justify-content:space-between;position:sticky;top:0;z-index:100}
.hdr h1{font-size:18px;font-weight:600}
.hdr-right{display:flex;align-items:center;font-size:13px;gap:10px}
.dot{width:10px;height:10px;border-radius:50%;display:inline-block}
.dot-green{background:#22c55e}.dot-red{background:#ef4444}.dot-yellow{background:#f59e0b}

/* Tabs */
.tabs{display:flex;border-bottom:2px solid #e5e7eb;background:#fff;padding:0 16px}
.tab{padding:12px 20px;cursor:pointer;font-size:14px;font-weight:500;color:#666;border-bottom:2px solid transparent;margin-bottom:-2px}
.tab.active{color:#667eea;border-bottom-color:#667eea}
.tabs.hidden{display:none}
.content{max-width:1000px;margin:0 auto;padding:20px}
.page{display:none}.page.active{display:block}

/* Cards, forms, tables */
.card{background:#fff;border-radius:8px;padding:20px;margin-bottom:16px;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.card h2{font-size:16px;margin-bottom:12px;padding-bottom:8px;border-bottom:1px solid #eee}
.btn{padding:8px 16px;border-radius:6px;border:none;cursor:pointer;font-size:14px;font-weight:500;background:#667eea;color:#fff}
.btn-secondary{background:#e5e7eb;color:#374151}
.btn-sm{padding:4px 10px;font-size:12px}
input,select{padding:8px 12px;border:1px solid #ddd;border-radius:6px;font-size:14px}
.row{display:flex;gap:8px;flex-wrap:wrap;align-items:center;margin-bottom:12px}
table{width:100%;border-collapse:collapse;font-size:14px}
th,td{text-align:left;padding:8px;border-bottom:1px solid #f0f0f0}
tr.hl{background:#fef9c3;transition:background 1s}
.badge{display:inline-block;padding:2px 10px;border-radius:20px;font-size:12px;font-weight:500;background:#f3f4f6}
.stat{display:inline-block;margin-right:24px}.stat strong{display:block;font-size:20px}
.note{padding:8px 0;border-bottom:1px solid #f0f0f0;cursor:pointer}.note.unread{font-weight:600}
.err{color:#ef4444;font-size:13px;margin-top:8px}
#log{background:#1a1a2e;color:#a0aec0;padding:15px;border-radius:6px;font-family:monospace;font-size:13px;max-height:300px;overflow-y:auto}
#toast{position:fixed;bottom:20px;right:20px;background:#333;color:#fff;padding:12px 18px;border-radius:6px;display:none}
</style>
</head>
<body>
<div class="hdr">
  <h1>Workshop Console</h1>
  <div class="hdr-right">
    <span id="who"></span>
    <span class="dot dot-red" id="rt-dot" title="Realtime"></span>
    <span id="unread"></span>
    <button class="btn btn-sm btn-secondary" id="logout" style="display:none" onclick="logout()">Sign out</button>
  </div>
</div>
<div class="tabs hidden" id="tabs">
  <div class="tab active" data-page="bookings">Bookings</div>
  <div class="tab" data-page="spare-parts">Spare Parts</div>
  <div class="tab" data-page="services">Revenue</div>
  <div class="tab" data-page="profile">Shop</div>
  <div class="tab" data-page="notifications">Notifications</div>
  <div class="tab" data-page="logs">Logs</div>
</div>
<div class="content">
  <div class="page" id="page-login">
    <div class="card" style="max-width:380px;margin:40px auto">
      <h2>Sign in</h2>
      <div class="row"><input id="email" type="email" placeholder="Email" style="width:100%"></div>
      <div class="row"><input id="password" type="password" placeholder="Password" style="width:100%"></div>
      <button class="btn" onclick="login()">Sign in</button>
      <div class="err" id="login-err"></div>
    </div>
  </div>
  <div class="page" id="page-bookings">
    <div class="card">
      <h2>Bookings</h2>
      <div class="row">
        <input id="b-q" placeholder="Search customer, vehicle, service" oninput="bPage=1;loadBookings()">
        <select id="b-status" onchange="bPage=1;loadBookings()">
          <option value="all">All</option><option>pending</option><option>confirmed</option>
          <option>in-progress</option><option>completed</option><option>cancelled</option>
        </select>
      </div>
      <table><thead><tr><th>Customer</th><th>Vehicle</th><th>Service</th><th>Date</th><th>Status</th></tr></thead><tbody id="b-rows"></tbody></table>
      <div class="row" style="margin-top:12px">
        <button class="btn btn-sm btn-secondary" onclick="bPage--;loadBookings()">Prev</button>
        <span id="b-pages"></span>
        <button class="btn btn-sm btn-secondary" onclick="bPage++;loadBookings()">Next</button>
      </div>
    </div>
  </div>
  <div class="page" id="page-spare-parts">
    <div class="card">
      <h2>Request a part</h2>
      <div class="row">
        <input id="sp-name" placeholder="Part name"><input id="sp-model" placeholder="Car model">
        <input id="sp-qty" type="number" min="1" value="1" style="width:80px">
        <select id="sp-urg"><option>low</option><option selected>medium</option><option>high</option></select>
        <button class="btn" onclick="requestPart()">Request</button>
      </div>
      <div class="err" id="sp-err"></div>
    </div>
    <div class="card"><h2>Requests</h2><table><tbody id="sp-rows"></tbody></table></div>
  </div>
  <div class="page" id="page-services">
    <div class="card"><h2>Revenue</h2><div id="revenue"></div></div>
  </div>
  <div class="page" id="page-profile">
    <div class="card">
      <h2>Shop</h2>
      <div class="row"><span>Shop is <strong id="shop-state">-</strong></span>
        <button class="btn btn-sm" onclick="toggleShop()">Toggle</button></div>
      <div class="row"><input type="file" id="img" accept="image/*"><button class="btn btn-sm" onclick="uploadImage()">Upload profile image</button></div>
      <div class="err" id="shop-err"></div>
    </div>
  </div>
  <div class="page" id="page-notifications">
    <div class="card"><h2>Notifications <button class="btn btn-sm btn-secondary" onclick="markRead('all')">Mark all read</button></h2><div id="notes"></div></div>
  </div>
  <div class="page" id="page-logs">
    <div class="card"><h2>Activity Log</h2><div id="log"></div></div>
  </div>
</div>
<div id="toast"></div>
<script>
let bPage = 1, shopOpen = false, lastUnread = 0;

function esc(s) { const d = document.createElement('div'); d.textContent = s == null ? '' : String(s); return d.innerHTML; }

function toast(msg) {
  const t = document.getElementById('toast');
  t.textContent = msg; t.style.display = 'block';
  clearTimeout(t._h); t._h = setTimeout(() => t.style.display = 'none', 4000);
}

async function api(method, path, body) {
  const opts = { method, headers: {} };
  if (body instanceof FormData) { opts.body = body; }
  else if (body !== undefined) { opts.headers['Content-Type'] = 'application/json'; opts.body = JSON.stringify(body); }
  const res = await fetch(path, opts);
  const data = await res.json().catch(() => ({}));
  if (res.status === 401 && data.error === 'login_required') { show('login'); throw new Error('Please sign in'); }
  if (!res.ok) throw new Error(data.error || res.statusText);
  return data;
}

function show(page) {
  document.querySelectorAll('.page').forEach(p => p.classList.toggle('active', p.id === 'page-' + page));
  document.querySelectorAll('.tab').forEach(t => t.classList.toggle('active', t.dataset.page === page));
  document.getElementById('tabs').classList.toggle('hidden', page === 'login');
  document.getElementById('logout').style.display = page === 'login' ? 'none' : '';
  if (page === 'login' && location.pathname !== '/login') history.replaceState(null, '', '/login');
  const loaders = { bookings: loadBookings, 'spare-parts': loadParts, services: loadRevenue, notifications: loadNotes, logs: loadLogs, profile: loadStatus };
  if (loaders[page]) loaders[page]().catch(e => toast(e.message));
}

document.querySelectorAll('.tab').forEach(t => t.onclick = () => show(t.dataset.page));

async function login() {
  try {
    await api('POST', '/api/login', { email: document.getElementById('email').value, password: document.getElementById('password').value });
    history.replaceState(null, '', '/');
    show('bookings');
  } catch (e) { document.getElementById('login-err').textContent = e.message; }
}

async function logout() { await api('POST', '/api/logout'); show('login'); }

async function loadStatus() {
  const s = await api('GET', '/api/status');
  if (!s.signed_in) { show('login'); return; }
  document.getElementById('who').textContent = s.identity.name || s.identity.email || '';
  const rt = s.realtime || {};
  document.getElementById('rt-dot').className = 'dot ' + (rt.connected ? 'dot-green' : rt.reconnecting ? 'dot-yellow' : 'dot-red');
  document.getElementById('unread').textContent = s.unread ? s.unread + ' new' : '';
  shopOpen = !!s.shop_open;
  document.getElementById('shop-state').textContent = shopOpen ? 'open' : 'closed';
  if (s.unread > lastUnread) { loadNotes().then(() => loadBookings()).catch(() => {}); }
  lastUnread = s.unread;
}

async function loadBookings() {
  const q = encodeURIComponent(document.getElementById('b-q').value);
  const st = document.getElementById('b-status').value;
  const d = await api('GET', '/api/bookings?q=' + q + '&status=' + st + '&page=' + bPage);
  bPage = d.page;
  const hl = new Set(d.highlighted);
  document.getElementById('b-rows').innerHTML = d.bookings.map(b =>
    '<tr class="' + (hl.has(b.id) ? 'hl' : '') + '"><td>' + esc(b.customerName) + '</td><td>' + esc(b.vehicle && b.vehicle.model) +
    '</td><td>' + esc(b.serviceType) + '</td><td>' + esc(b.date) + '</td><td><select onchange="setStatus(\'' + esc(b.id) + '\', this.value)">' +
    ['pending','confirmed','in-progress','completed','cancelled'].map(s => '<option' + (s === b.status ? ' selected' : '') + '>' + s + '</option>').join('') +
    '</select></td></tr>').join('') || '<tr><td colspan="5">No bookings</td></tr>';
  document.getElementById('b-pages').textContent = 'Page ' + d.page + ' of ' + Math.max(d.pageCount, 1);
}

async function setStatus(id, status) {
  try { await api('PATCH', '/api/bookings/' + encodeURIComponent(id) + '/status', { status }); toast('Status updated'); }
  catch (e) { toast(e.message); }
  loadBookings();
}

async function loadParts() {
  const d = await api('GET', '/api/spare-parts');
  document.getElementById('sp-rows').innerHTML = d.requests.map(p =>
    '<tr><td>' + esc(p.partName) + '</td><td>' + esc(p.carModel) + '</td><td>' + esc(p.quantity) + '</td><td><span class="badge">' + esc(p.urgency) +
    '</span></td><td>' + esc(p.status) + '</td></tr>').join('') || '<tr><td>No requests</td></tr>';
}

async function requestPart() {
  const err = document.getElementById('sp-err'); err.textContent = '';
  try {
    await api('POST', '/api/spare-parts', {
      partName: document.getElementById('sp-name').value, carModel: document.getElementById('sp-model').value,
      quantity: parseInt(document.getElementById('sp-qty').value, 10) || 0, urgency: document.getElementById('sp-urg').value });
    toast('Part requested'); loadParts();
  } catch (e) { err.textContent = e.message; }
}

async function loadRevenue() {
  const d = await api('GET', '/api/revenue');
  const f = d.formatted;
  document.getElementById('revenue').innerHTML =
    '<div class="stat">Total<strong>' + f.total + '</strong></div><div class="stat">This month<strong>' + f.monthly +
    '</strong></div><div class="stat">Last month<strong>' + f.lastMonth + '</strong></div><div class="stat">Growth<strong>' + f.growth + '</strong></div>';
}

async function toggleShop() {
  try { await api('PUT', '/api/shop', { open: !shopOpen }); await loadStatus(); }
  catch (e) { document.getElementById('shop-err').textContent = e.message; }
}

async function uploadImage() {
  const f = document.getElementById('img').files[0];
  if (!f) return;
  const fd = new FormData(); fd.append('image', f);
  try { await api('POST', '/api/profile/image', fd); toast('Profile image updated'); }
  catch (e) { document.getElementById('shop-err').textContent = e.message; }
}

async function loadNotes() {
  const d = await api('GET', '/api/notifications');
  document.getElementById('notes').innerHTML = d.notifications.map(n =>
    '<div class="note' + (n.read ? '' : ' unread') + '" onclick="openNote(\'' + esc(n.id) + '\', \'' + esc(n.view) + '\')">' +
    esc(n.message) + ' <span class="badge">' + esc(n.ago) + '</span></div>').join('') || 'Nothing yet';
}

async function openNote(id, view) { await markRead(id); show(view); }

async function markRead(id) { await api('POST', '/api/notifications/' + encodeURIComponent(id) + '/read'); loadNotes(); loadStatus(); }

async function loadLogs() {
  const d = await api('GET', '/api/logs');
  document.getElementById('log').innerHTML = d.logs.map(l =>
    '<div>[' + new Date(l.timestamp).toLocaleTimeString() + '] ' + esc(l.level) + ' ' + esc(l.message) + '</div>').join('');
}

if (location.pathname === '/login') { show('login'); } else { show('bookings'); loadStatus().catch(() => {}); }
setInterval(() => { if (!document.getElementById('page-login').classList.contains('active')) loadStatus().catch(() => {}); }, 3000);
</script>
</body>
</html>`
