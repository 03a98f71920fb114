package sqlinline

const QInsertJob = `--sql 15e575b4-b92e-48e5-b23b-dd37daca6ab6
insert into jobs (id, session_id, type, status, input, created_at, updated_at)
values ($1::uuid, $2::uuid, $3::text, 'PENDING', coalesce($4::jsonb, '{}'::jsonb), now(), now())
on conflict (id) do nothing;
`

const QSelectJobByID = `--sql f4894d99-b9e8-4384-85fd-27c821815060
select id::text, session_id::text, type, status, input, output, coalesce(error, ''), created_at, updated_at
from jobs
where id = $1::uuid;
`

const QMarkJobRunning = `--sql a11efc48-2365-49ad-ae89-292384c2ae95
update jobs
set status = 'RUNNING', updated_at = now()
where id = $1::uuid
  and status in ('PENDING', 'RUNNING');
`

const QCompleteJob = `--sql de6cd314-0a15-47d0-a8af-db740e40d785
update jobs
set status = 'COMPLETED', output = $2::jsonb, error = null, updated_at = now()
where id = $1::uuid
  and status = 'RUNNING';
`

const QFailJob = `--sql c59ea576-7a29-4ffd-9bf5-4b0bcb957efd
update jobs
set status = 'FAILED', error = $2::text, updated_at = now()
where id = $1::uuid
  and status in ('PENDING', 'RUNNING');
`

// QClaimStalePendingJob only picks jobs whose queue event should long have
// been consumed, so it does not race the event-driven path.
const QClaimStalePendingJob = `--sql 455143be-8a41-4725-9662-70be0f79fbc4
with next_job as (
    select id
    from jobs
    where status = 'PENDING'
      and created_at < now() - interval '30 seconds'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update jobs
    set status = 'RUNNING', updated_at = now()
    where id in (select id from next_job)
    returning id, session_id, type, status, input, output, error, created_at, updated_at
)
select id::text, session_id::text, type, status, input, output, coalesce(error, ''), created_at, updated_at
from updated;
`
